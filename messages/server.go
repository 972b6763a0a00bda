package messages

import "time"

// Error codes
const (
	ErrCodeInvalidDestination = "INVALID_DESTINATION"
	ErrCodeCallFailed         = "CALL_FAILED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL"
)

// CallPlacedResponse is returned by /call on success
type CallPlacedResponse struct {
	Message string `json:"message"`
	CallSid string `json:"call_sid"`
}

// ErrorResponse is returned by /call on failure. Provider error text is never included.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse reports liveness and the number of tracked calls
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Redis    bool   `json:"redis"`
}

// NewCallPlacedResponse creates the /call success payload
func NewCallPlacedResponse(callSid string) *CallPlacedResponse {
	return &CallPlacedResponse{
		Message: "Call placed successfully!",
		CallSid: callSid,
	}
}

// NewErrorResponse creates an error payload
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{Error: message, Code: code}
}

// Event types streamed to call monitors
const (
	EventCallPlaced    = "call_placed"
	EventIntent        = "intent"
	EventMeetingBooked = "meeting_booked"
	EventDateRejected  = "date_rejected"
	EventBookingFailed = "booking_failed"
)

// Event is one entry of the call monitor feed
type Event struct {
	Type    string    `json:"type"`
	CallSid string    `json:"callSid,omitempty"`
	Stage   string    `json:"stage,omitempty"`
	Intent  string    `json:"intent,omitempty"`
	Link    string    `json:"link,omitempty"`
	At      time.Time `json:"at"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType, callSid string) *Event {
	return &Event{
		Type:    eventType,
		CallSid: callSid,
		At:      time.Now().UTC(),
	}
}
