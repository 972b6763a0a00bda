package session

import (
	"time"

	"github.com/room4-2/SalesCaller/conversation"
)

// CallSession is what the service remembers about one phone call
type CallSession struct {
	CallSid      string
	To           string
	Stage        conversation.Stage
	MeetingLink  string
	CreatedAt    time.Time
	LastActivity time.Time
}

func newCallSession(callSid string, now time.Time) CallSession {
	return CallSession{
		CallSid:      callSid,
		Stage:        conversation.StageGreeting,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// toHash flattens the session for the Redis mirror
func (s CallSession) toHash() map[string]interface{} {
	return map[string]interface{}{
		"to":            s.To,
		"stage":         s.Stage.String(),
		"meeting_link":  s.MeetingLink,
		"created_at":    s.CreatedAt.Format(time.RFC3339),
		"last_activity": s.LastActivity.Format(time.RFC3339),
	}
}

func fromHash(callSid string, h map[string]string) CallSession {
	s := CallSession{
		CallSid:     callSid,
		To:          h["to"],
		Stage:       conversation.ParseStage(h["stage"]),
		MeetingLink: h["meeting_link"],
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, h["created_at"])
	s.LastActivity, _ = time.Parse(time.RFC3339, h["last_activity"])
	return s
}
