package dates

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// Monday 19 October 2026, 09:00 in Kolkata
func fixedClock(t *testing.T) (func() time.Time, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	ref := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	return func() time.Time { return ref }, loc
}

func TestParseRecognizesPhrases(t *testing.T) {
	clock, loc := fixedClock(t)
	in := NewInterpreter(loc, zap.NewNop(), WithClock(clock))

	tests := []struct {
		utterance string
		weekday   time.Weekday
		hour      int
	}{
		{"next monday at 3pm", time.Monday, 15},
		{"tomorrow at 10am", time.Tuesday, 10},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			got, err := in.Parse(context.Background(), tt.utterance)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.Weekday() != tt.weekday || got.Hour() != tt.hour {
				t.Errorf("Parse = %v, want %s at %d:00", got, tt.weekday, tt.hour)
			}
			if got.Location() != loc {
				t.Errorf("location = %v, want %v", got.Location(), loc)
			}
			if !got.After(clock()) {
				t.Errorf("Parse = %v, want a time after %v", got, clock())
			}
		})
	}
}

func TestParseRejectsNonsense(t *testing.T) {
	clock, loc := fixedClock(t)
	in := NewInterpreter(loc, zap.NewNop(), WithClock(clock))

	for _, u := range []string{"blah blah nonsense", ""} {
		if _, err := in.Parse(context.Background(), u); !errors.Is(err, ErrNotRecognized) {
			t.Errorf("Parse(%q) err = %v, want ErrNotRecognized", u, err)
		}
	}
}

type stubFallback struct {
	calls int
	at    time.Time
	err   error
}

func (s *stubFallback) ExtractDateTime(ctx context.Context, utterance string, now time.Time) (time.Time, error) {
	s.calls++
	return s.at, s.err
}

func TestParseUsesFallbackOnlyWhenRulesFail(t *testing.T) {
	clock, loc := fixedClock(t)
	want := time.Date(2026, 10, 23, 16, 0, 0, 0, time.UTC)
	fb := &stubFallback{at: want}
	in := NewInterpreter(loc, zap.NewNop(), WithClock(clock), WithFallback(fb))

	if _, err := in.Parse(context.Background(), "tomorrow at 10am"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if fb.calls != 0 {
		t.Fatalf("fallback called %d times for a rule match", fb.calls)
	}

	got, err := in.Parse(context.Background(), "whenever suits the team")
	if err != nil {
		t.Fatalf("Parse with fallback: %v", err)
	}
	if !got.Equal(want) || got.Location() != loc {
		t.Errorf("Parse = %v, want %v in %v", got, want, loc)
	}

	fb.err = errors.New("model unavailable")
	if _, err := in.Parse(context.Background(), "whenever"); !errors.Is(err, ErrNotRecognized) {
		t.Errorf("err = %v, want ErrNotRecognized", err)
	}
}

func TestParseNeverMisreadsPartialPhrases(t *testing.T) {
	clock, loc := fixedClock(t)
	in := NewInterpreter(loc, zap.NewNop(), WithClock(clock))

	tests := []struct {
		utterance string
		// required means the phrase must be understood, not merely left unbooked
		required bool
		check    func(time.Time) bool
	}{
		{"the day after tomorrow at noon", false, func(got time.Time) bool {
			return got.Equal(time.Date(2026, 10, 21, 12, 0, 0, 0, loc))
		}},
		{"monday 3 o'clock", false, func(got time.Time) bool {
			return got.Day() == 26 && (got.Hour() == 3 || got.Hour() == 15)
		}},
		{"2026-10-25 15:00", true, func(got time.Time) bool {
			return got.Equal(time.Date(2026, 10, 25, 15, 0, 0, 0, loc))
		}},
		{"on the 25th", false, func(got time.Time) bool {
			return got.Month() == time.October && got.Day() == 25
		}},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			got, err := in.Parse(context.Background(), tt.utterance)
			if err != nil {
				if tt.required {
					t.Fatalf("Parse: %v", err)
				}
				if !errors.Is(err, ErrNotRecognized) {
					t.Errorf("err = %v, want ErrNotRecognized", err)
				}
				return
			}
			if !tt.check(got.In(loc)) {
				t.Errorf("Parse = %v, which is not the time asked for", got)
			}
		})
	}
}

func TestRulesRejectPartialMatch(t *testing.T) {
	clock, loc := fixedClock(t)
	in := NewInterpreter(loc, zap.NewNop(), WithClock(clock))

	if _, ok := in.parseRules("the day after tomorrow at noon", clock()); ok {
		t.Error("rules accepted a match that skipped \"the day after\"")
	}
	if _, ok := in.parseRules("monday 3 o'clock", clock()); ok {
		t.Error("rules accepted a match that skipped the hour")
	}
	if _, ok := in.parseRules("tomorrow at 10am", clock()); !ok {
		t.Error("rules rejected a fully matched phrase")
	}
}

func TestHasTemporalWords(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"  at please ", false},
		{"the day after", true},
		{"3 o'clock", true},
		{"25th", true},
		{"in the evening", true},
		{"sounds good", false},
	}
	for _, tt := range tests {
		if got := hasTemporalWords(tt.in); got != tt.want {
			t.Errorf("hasTemporalWords(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
