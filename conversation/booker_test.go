package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/room4-2/SalesCaller/calendar"
)

type fakeDates struct {
	at  time.Time
	err error
}

func (f fakeDates) Parse(ctx context.Context, utterance string) (time.Time, error) {
	return f.at, f.err
}

type fakeScheduler struct {
	mu         sync.Mutex
	calls      []time.Time
	requestIDs []string
	link       string
	err        error
	delay      time.Duration
}

func (f *fakeScheduler) Schedule(ctx context.Context, start time.Time, requestID string) (*calendar.Meeting, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, start)
	f.requestIDs = append(f.requestIDs, requestID)
	if f.err != nil {
		return nil, f.err
	}
	return &calendar.Meeting{Start: start, End: start.Add(30 * time.Minute), JoinLink: f.link}, nil
}

type sentText struct{ to, link string }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (f *fakeNotifier) SendConfirmation(ctx context.Context, to, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{to, link})
	return f.err
}

type mapLedger map[string]string

func (m mapLedger) MeetingLink(ctx context.Context, callSid string) (string, bool) {
	link, ok := m[callSid]
	return link, ok
}

func (m mapLedger) SetMeetingLink(ctx context.Context, callSid, link string) error {
	m[callSid] = link
	return nil
}

func TestHandleDateBooksAndNotifies(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 10, 26, 15, 0, 0, 0, loc)

	sched := &fakeScheduler{link: "https://meet.google.com/abc-defg-hij"}
	notifier := &fakeNotifier{}
	b := NewBooker(fakeDates{at: at}, sched, notifier, mapLedger{}, zap.NewNop())

	res := b.HandleDate(context.Background(), BookingRequest{CallSid: "CA1", To: "+918275760425", Utterance: "Next Monday at 3pm"})

	if res.Status != StatusBooked {
		t.Fatalf("Status = %s, want booked (err=%v)", res.Status, res.Err)
	}
	if len(sched.calls) != 1 || !sched.calls[0].Equal(at) || sched.calls[0].Location() != loc {
		t.Fatalf("scheduler calls = %v, want exactly [%v]", sched.calls, at)
	}
	if sched.requestIDs[0] != RequestID("CA1") {
		t.Errorf("requestID = %q", sched.requestIDs[0])
	}
	if !strings.Contains(res.Reply.Text, "https://meet.google.com/abc-defg-hij") {
		t.Errorf("reply %q does not carry the link", res.Reply.Text)
	}
	if res.Reply.Next.Kind != ActionReply {
		t.Errorf("Next = %+v, want reply", res.Reply.Next)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d texts, want 1", len(notifier.sent))
	}
	if notifier.sent[0].to != "+918275760425" || notifier.sent[0].link != "https://meet.google.com/abc-defg-hij" {
		t.Errorf("text = %+v", notifier.sent[0])
	}
}

func TestHandleDateRejectsUnparseable(t *testing.T) {
	sched := &fakeScheduler{link: "https://meet.google.com/x"}
	notifier := &fakeNotifier{}
	b := NewBooker(fakeDates{err: errors.New("no date")}, sched, notifier, nil, zap.NewNop())

	res := b.HandleDate(context.Background(), BookingRequest{CallSid: "CA2", Utterance: "blah blah nonsense"})

	if res.Status != StatusDateRejected {
		t.Fatalf("Status = %s", res.Status)
	}
	if res.Reply.Text != DateNotUnderstoodReply {
		t.Errorf("Text = %q", res.Reply.Text)
	}
	if res.Reply.Next != (Action{Kind: ActionRedirect, Stage: StageAwaitingIntent}) {
		t.Errorf("Next = %+v", res.Reply.Next)
	}
	if len(sched.calls) != 0 || len(notifier.sent) != 0 {
		t.Errorf("unexpected side effects: schedule=%d texts=%d", len(sched.calls), len(notifier.sent))
	}
}

func TestHandleDateSchedulingFailureSendsNothing(t *testing.T) {
	sched := &fakeScheduler{err: &calendar.SchedulingError{Op: "insert event", Err: errors.New("quota exceeded")}}
	notifier := &fakeNotifier{}
	b := NewBooker(fakeDates{at: time.Now()}, sched, notifier, mapLedger{}, zap.NewNop())

	res := b.HandleDate(context.Background(), BookingRequest{CallSid: "CA3", To: "+15005550006", Utterance: "tomorrow at 10am"})

	if res.Status != StatusFailed {
		t.Fatalf("Status = %s", res.Status)
	}
	var schedErr *calendar.SchedulingError
	if !errors.As(res.Err, &schedErr) {
		t.Errorf("Err = %v, want SchedulingError", res.Err)
	}
	if res.Reply.Text != BookingFailedReply {
		t.Errorf("Text = %q", res.Reply.Text)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("sent %d texts after failure", len(notifier.sent))
	}
}

func TestHandleDateReusesBookingForSameCall(t *testing.T) {
	sched := &fakeScheduler{link: "https://meet.google.com/once"}
	notifier := &fakeNotifier{}
	ledger := mapLedger{}
	b := NewBooker(fakeDates{at: time.Now()}, sched, notifier, ledger, zap.NewNop())

	req := BookingRequest{CallSid: "CA4", To: "+15005550006", Utterance: "friday at noon"}
	first := b.HandleDate(context.Background(), req)
	second := b.HandleDate(context.Background(), req)

	if first.Status != StatusBooked || second.Status != StatusAlreadyBooked {
		t.Fatalf("statuses = %s, %s", first.Status, second.Status)
	}
	if len(sched.calls) != 1 || len(notifier.sent) != 1 {
		t.Errorf("schedule=%d texts=%d, want 1 each", len(sched.calls), len(notifier.sent))
	}
	if second.Reply.Text != first.Reply.Text {
		t.Errorf("second reply %q differs from first %q", second.Reply.Text, first.Reply.Text)
	}
}

func TestHandleDateNotifyFailureKeepsReply(t *testing.T) {
	sched := &fakeScheduler{link: "https://meet.google.com/sms-down"}
	notifier := &fakeNotifier{err: errors.New("twilio down")}
	b := NewBooker(fakeDates{at: time.Now()}, sched, notifier, nil, zap.NewNop())

	res := b.HandleDate(context.Background(), BookingRequest{CallSid: "CA5", To: "+15005550006", Utterance: "today at 5pm"})

	if res.Status != StatusBooked || res.NotifyErr == nil {
		t.Fatalf("Status = %s NotifyErr = %v", res.Status, res.NotifyErr)
	}
	if !strings.Contains(res.Reply.Text, "sms-down") {
		t.Errorf("reply lost the link: %q", res.Reply.Text)
	}
}

func TestHandleDateConcurrentCallbacksBookOnce(t *testing.T) {
	sched := &fakeScheduler{link: "https://meet.google.com/race", delay: 50 * time.Millisecond}
	notifier := &fakeNotifier{}
	b := NewBooker(fakeDates{at: time.Now()}, sched, notifier, mapLedger{}, zap.NewNop())

	req := BookingRequest{CallSid: "CA6", To: "+15005550006", Utterance: "tomorrow at 10am"}
	results := make([]BookingResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.HandleDate(context.Background(), req)
		}(i)
	}
	wg.Wait()

	if len(sched.calls) != 1 || len(notifier.sent) != 1 {
		t.Fatalf("schedule=%d texts=%d, want 1 each", len(sched.calls), len(notifier.sent))
	}
	statuses := map[BookingStatus]int{}
	for _, r := range results {
		statuses[r.Status]++
		if !strings.Contains(r.Reply.Text, "race") {
			t.Errorf("reply %q does not carry the link", r.Reply.Text)
		}
	}
	if statuses[StatusBooked] != 1 || statuses[StatusAlreadyBooked] != 1 {
		t.Errorf("statuses = %v", statuses)
	}
	if n := b.locks.len(); n != 0 {
		t.Errorf("%d call locks left behind", n)
	}
}

func TestCallLocksAreIndependentPerCall(t *testing.T) {
	locks := newCallLocks()

	unlockA := locks.lock("CA1")
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("CA2")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on CA2 waited for CA1")
	}
	unlockA()

	if n := locks.len(); n != 0 {
		t.Errorf("len = %d after all unlocks", n)
	}
}
