// Package conversation routes caller utterances to the next spoken prompt.
package conversation

import (
	"errors"
	"strings"
)

// Stage identifies which prompt the caller is answering
type Stage int

const (
	StageGreeting Stage = iota
	StageAwaitingIntent
	StageAwaitingDateTime
)

func (s Stage) String() string {
	switch s {
	case StageGreeting:
		return "greeting"
	case StageAwaitingIntent:
		return "awaiting_intent"
	case StageAwaitingDateTime:
		return "awaiting_datetime"
	default:
		return "unknown"
	}
}

// ParseStage is the inverse of Stage.String. Unknown names map to StageGreeting.
func ParseStage(s string) Stage {
	switch s {
	case "awaiting_intent":
		return StageAwaitingIntent
	case "awaiting_datetime":
		return StageAwaitingDateTime
	default:
		return StageGreeting
	}
}

// ActionKind tells the voice layer what to do after speaking the reply
type ActionKind int

const (
	// ActionReply speaks the reply and ends the turn
	ActionReply ActionKind = iota
	// ActionGather speaks the reply and collects more speech for Action.Stage
	ActionGather
	// ActionRedirect speaks the reply and resumes the flow at Action.Stage
	ActionRedirect
)

// Action is the instruction that follows a reply
type Action struct {
	Kind  ActionKind
	Stage Stage
}

// Reply is the outcome of one conversational turn
type Reply struct {
	Text string
	Next Action
}

// Intent is the keyword rule an utterance matched
type Intent string

const (
	IntentCourse  Intent = "course"
	IntentDemo    Intent = "demo"
	IntentUnknown Intent = "unknown"
)

// ErrUnrecognizedIntent is reported for utterances that match no keyword rule
var ErrUnrecognizedIntent = errors.New("unrecognized intent")

var demoKeywords = []string{"demo", "schedule", "book"}

// NormalizeUtterance lowercases and trims a raw speech transcript
func NormalizeUtterance(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Classify applies the keyword rules in priority order. Course is checked
// before the demo keywords, so an utterance naming both is a course request.
func Classify(utterance string) (Intent, error) {
	u := NormalizeUtterance(utterance)

	if strings.Contains(u, "course") {
		return IntentCourse, nil
	}
	for _, kw := range demoKeywords {
		if strings.Contains(u, kw) {
			return IntentDemo, nil
		}
	}
	return IntentUnknown, ErrUnrecognizedIntent
}

// Dispatch maps an utterance at the given stage to the next reply.
// The date stage is normally served by Booker; here it only re-asks.
func Dispatch(utterance string, stage Stage) Reply {
	switch stage {
	case StageGreeting:
		return Reply{Text: GreetingPrompt, Next: Action{Kind: ActionGather, Stage: StageAwaitingIntent}}
	case StageAwaitingDateTime:
		return dateNotUnderstood()
	}

	intent, _ := Classify(utterance)
	switch intent {
	case IntentCourse:
		return Reply{Text: CourseInfoReply, Next: Action{Kind: ActionReply}}
	case IntentDemo:
		return Reply{Text: AskDateTimePrompt, Next: Action{Kind: ActionGather, Stage: StageAwaitingDateTime}}
	default:
		return Reply{Text: NotUnderstoodReply, Next: Action{Kind: ActionGather, Stage: StageAwaitingIntent}}
	}
}

func dateNotUnderstood() Reply {
	return Reply{Text: DateNotUnderstoodReply, Next: Action{Kind: ActionRedirect, Stage: StageAwaitingIntent}}
}
