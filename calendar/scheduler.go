// Package calendar books demo meetings on Google Calendar with an
// auto-created Google Meet conference.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	eventSummary     = "AI Sales Caller Demo Meeting"
	eventDescription = "This is a demo meeting scheduled by AI Sales Caller."
	conferenceType   = "hangoutsMeet"

	maxRetries = 3
)

// Meeting is a booked event and the link participants join with
type Meeting struct {
	EventID  string
	Start    time.Time
	End      time.Time
	JoinLink string
}

// SchedulingError wraps any calendar-side failure
type SchedulingError struct {
	Op  string
	Err error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("calendar: %s: %v", e.Op, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// Options controls how events are created
type Options struct {
	CalendarID string
	Location   *time.Location
	// Duration is added to the start time to form the end time. Zero yields an instant event.
	Duration time.Duration
}

// Scheduler creates calendar events with Meet links
type Scheduler struct {
	events     *gcal.EventsService
	calendarID string
	location   *time.Location
	duration   time.Duration
	logger     *zap.Logger
}

// NewScheduler builds the Calendar client and checks that the target calendar
// is reachable, retrying transient failures with exponential backoff.
func NewScheduler(ctx context.Context, opts Options, logger *zap.Logger, clientOpts ...option.ClientOption) (*Scheduler, error) {
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	var srv *gcal.Service
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		srv, err = gcal.NewService(ctx, clientOpts...)
		if err != nil {
			return err
		}
		if _, err = srv.Calendars.Get(opts.CalendarID).Context(ctx).Do(); err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			logger.Warn("calendar not reachable yet", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries-1), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, &SchedulingError{Op: "connect", Err: fmt.Errorf("after %d attempts: %w", attempt, err)}
	}

	return &Scheduler{
		events:     srv.Events,
		calendarID: opts.CalendarID,
		location:   opts.Location,
		duration:   opts.Duration,
		logger:     logger,
	}, nil
}

// Schedule creates an event starting at start and returns its join link.
// requestID keys the conference creation so repeated requests reuse it.
func (s *Scheduler) Schedule(ctx context.Context, start time.Time, requestID string) (*Meeting, error) {
	start = start.In(s.location)
	end := start.Add(s.duration)

	event := &gcal.Event{
		Summary:     eventSummary,
		Description: eventDescription,
		Start:       s.eventTime(start),
		End:         s.eventTime(end),
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: conferenceType},
				RequestId:             requestID,
			},
		},
	}

	created, err := s.events.Insert(s.calendarID, event).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, &SchedulingError{Op: "insert event", Err: err}
	}

	link := joinLink(created)
	if link == "" {
		return nil, &SchedulingError{Op: "insert event", Err: errors.New("event has no conference link")}
	}

	s.logger.Info("meeting scheduled",
		zap.String("event_id", created.Id),
		zap.Time("start", start),
		zap.String("link", link),
	)

	return &Meeting{
		EventID:  created.Id,
		Start:    start,
		End:      end,
		JoinLink: link,
	}, nil
}

func (s *Scheduler) eventTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: s.location.String(),
	}
}

func joinLink(e *gcal.Event) string {
	if e.HangoutLink != "" {
		return e.HangoutLink
	}
	if e.ConferenceData == nil {
		return ""
	}
	for _, ep := range e.ConferenceData.EntryPoints {
		if ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}

func isPermanent(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
