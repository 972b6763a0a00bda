package conversation

import "fmt"

const (
	GreetingPrompt         = "Hello, this is your AI Sales Assistant! Would you like to know about our courses or book a demo?"
	NoInputGoodbye         = "Sorry, I didn't hear anything. Goodbye."
	CourseInfoReply        = "We offer comprehensive data science and AI courses. Would you like to know the curriculum details?"
	AskDateTimePrompt      = "I can schedule a demo for you. Please say a suitable date and time."
	NotUnderstoodReply     = "I'm sorry, I didn't understand that."
	DateNotUnderstoodReply = "I couldn't understand the date and time. Please repeat it clearly."
	BookingFailedReply     = "I'm sorry, I couldn't book the demo right now. Please try again later."
	VoiceCheckReply        = "Hello! Your AI Sales Agent is active."
)

// BookedReply is spoken once the meeting exists
func BookedReply(link string) string {
	return fmt.Sprintf("Your demo has been scheduled. Here is your Google Meet link: %s", link)
}

// ConfirmationText is the SMS body sent after booking
func ConfirmationText(link string) string {
	return fmt.Sprintf("Your demo is scheduled. Join here: %s", link)
}
