package conversation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/room4-2/SalesCaller/calendar"
)

// DateParser turns an utterance into a meeting start time
type DateParser interface {
	Parse(ctx context.Context, utterance string) (time.Time, error)
}

// MeetingScheduler books a meeting and returns its join link
type MeetingScheduler interface {
	Schedule(ctx context.Context, start time.Time, requestID string) (*calendar.Meeting, error)
}

// Notifier delivers the confirmation text message
type Notifier interface {
	SendConfirmation(ctx context.Context, to, link string) error
}

// BookingLedger remembers the meeting booked for a call
type BookingLedger interface {
	MeetingLink(ctx context.Context, callSid string) (string, bool)
	SetMeetingLink(ctx context.Context, callSid, link string) error
}

// BookingStatus summarises what HandleDate did
type BookingStatus string

const (
	StatusBooked        BookingStatus = "booked"
	StatusAlreadyBooked BookingStatus = "already_booked"
	StatusDateRejected  BookingStatus = "date_rejected"
	StatusFailed        BookingStatus = "failed"
)

// BookingRequest is one date-stage callback
type BookingRequest struct {
	CallSid   string
	To        string
	Utterance string
}

// BookingResult carries the spoken reply plus what happened behind it
type BookingResult struct {
	Reply   Reply
	Status  BookingStatus
	Meeting *calendar.Meeting
	// Err is the scheduling or parse failure, if any
	Err error
	// NotifyErr is set when the meeting was booked but the text message failed
	NotifyErr error
}

// Booker runs the date stage: interpret, schedule, confirm
type Booker struct {
	dates     DateParser
	scheduler MeetingScheduler
	notifier  Notifier
	ledger    BookingLedger
	locks     *callLocks
	logger    *zap.Logger
}

// NewBooker wires the date-stage collaborators. ledger may be nil.
func NewBooker(dates DateParser, scheduler MeetingScheduler, notifier Notifier, ledger BookingLedger, logger *zap.Logger) *Booker {
	return &Booker{
		dates:     dates,
		scheduler: scheduler,
		notifier:  notifier,
		ledger:    ledger,
		locks:     newCallLocks(),
		logger:    logger,
	}
}

// RequestID derives the conference request id for a call
func RequestID(callSid string) string {
	return "salescaller-" + callSid
}

// HandleDate interprets the utterance and books the meeting. It never
// returns an error: failures become spoken fallbacks and no text is sent.
func (b *Booker) HandleDate(ctx context.Context, req BookingRequest) BookingResult {
	utterance := NormalizeUtterance(req.Utterance)

	start, err := b.dates.Parse(ctx, utterance)
	if err != nil {
		b.logger.Info("date not recognized",
			zap.String("call_sid", req.CallSid),
			zap.String("utterance", utterance),
			zap.Error(err),
		)
		return BookingResult{Reply: dateNotUnderstood(), Status: StatusDateRejected, Err: err}
	}

	meeting, reused, err := b.book(ctx, req.CallSid, start)
	if err != nil {
		b.logger.Error("failed to schedule meeting",
			zap.String("call_sid", req.CallSid),
			zap.Time("start", start),
			zap.Error(err),
		)
		return BookingResult{
			Reply:  Reply{Text: BookingFailedReply, Next: Action{Kind: ActionReply}},
			Status: StatusFailed,
			Err:    err,
		}
	}
	if reused {
		b.logger.Info("meeting already booked for call",
			zap.String("call_sid", req.CallSid),
			zap.String("link", meeting.JoinLink),
		)
		return BookingResult{
			Reply:   Reply{Text: BookedReply(meeting.JoinLink), Next: Action{Kind: ActionReply}},
			Status:  StatusAlreadyBooked,
			Meeting: meeting,
		}
	}

	result := BookingResult{
		Reply:   Reply{Text: BookedReply(meeting.JoinLink), Next: Action{Kind: ActionReply}},
		Status:  StatusBooked,
		Meeting: meeting,
	}

	if err := b.notifier.SendConfirmation(ctx, req.To, meeting.JoinLink); err != nil {
		b.logger.Error("failed to send confirmation",
			zap.String("call_sid", req.CallSid),
			zap.String("to", req.To),
			zap.Error(err),
		)
		result.NotifyErr = err
	}

	return result
}

// book schedules the meeting unless the ledger already holds one for the
// call. Callbacks for one call are booked one at a time, so a repeat sees
// the link recorded by the first.
func (b *Booker) book(ctx context.Context, callSid string, start time.Time) (*calendar.Meeting, bool, error) {
	unlock := b.locks.lock(callSid)
	defer unlock()

	if b.ledger != nil {
		if link, ok := b.ledger.MeetingLink(ctx, callSid); ok && link != "" {
			return &calendar.Meeting{Start: start, JoinLink: link}, true, nil
		}
	}

	meeting, err := b.scheduler.Schedule(ctx, start, RequestID(callSid))
	if err != nil {
		return nil, false, err
	}

	if b.ledger != nil {
		if err := b.ledger.SetMeetingLink(ctx, callSid, meeting.JoinLink); err != nil {
			b.logger.Warn("failed to record meeting link", zap.String("call_sid", callSid), zap.Error(err))
		}
	}
	return meeting, false, nil
}
