// Package dates turns spoken date and time phrases into timestamps.
package dates

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	dps "github.com/markusmobius/go-dateparser"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"go.uber.org/zap"
)

// ErrNotRecognized is returned when no date or time can be found in the utterance
var ErrNotRecognized = errors.New("date and time not recognized")

// Fallback is consulted when the rule-based parsers find nothing
type Fallback interface {
	ExtractDateTime(ctx context.Context, utterance string, now time.Time) (time.Time, error)
}

// Interpreter parses free-form speech relative to the current time in a
// fixed location. The when rules are tried first and only trusted when
// their match covers every date or time word; the whole phrase then goes
// to dateparser, then to the optional fallback.
type Interpreter struct {
	parser   *when.Parser
	location *time.Location
	fallback Fallback
	now      func() time.Time
	logger   *zap.Logger
}

// Option customises an Interpreter
type Option func(*Interpreter)

// WithFallback sets a secondary extractor tried after the rules fail
func WithFallback(f Fallback) Option {
	return func(i *Interpreter) { i.fallback = f }
}

// WithClock overrides the reference time source
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

func NewInterpreter(location *time.Location, logger *zap.Logger, opts ...Option) *Interpreter {
	if location == nil {
		location = time.UTC
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	i := &Interpreter{
		parser:   w,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Location returns the zone results are expressed in
func (i *Interpreter) Location() *time.Location {
	return i.location
}

// Parse returns the timestamp described by utterance, or ErrNotRecognized
func (i *Interpreter) Parse(ctx context.Context, utterance string) (time.Time, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return time.Time{}, ErrNotRecognized
	}
	now := i.now().In(i.location)

	if t, ok := i.parseRules(utterance, now); ok {
		return t, nil
	}
	if t, ok := i.parsePhrase(utterance, now); ok {
		return t, nil
	}

	if i.fallback == nil {
		return time.Time{}, ErrNotRecognized
	}
	t, err := i.fallback.ExtractDateTime(ctx, utterance, now)
	if err != nil {
		i.logger.Info("date fallback failed", zap.String("utterance", utterance), zap.Error(err))
		return time.Time{}, ErrNotRecognized
	}
	return t.In(i.location), nil
}

func (i *Interpreter) parseRules(utterance string, now time.Time) (time.Time, bool) {
	res, err := i.parser.Parse(utterance, now)
	if err != nil {
		i.logger.Debug("date rules failed", zap.String("utterance", utterance), zap.Error(err))
		return time.Time{}, false
	}
	if res == nil {
		return time.Time{}, false
	}

	if rest := unmatched(utterance, res.Index, res.Text); hasTemporalWords(rest) {
		i.logger.Debug("date rules matched part of the phrase",
			zap.String("utterance", utterance),
			zap.String("matched", res.Text),
			zap.String("unmatched", rest),
		)
		return time.Time{}, false
	}
	return res.Time.In(i.location), true
}

// parsePhrase reads the whole utterance with dateparser, which fails rather
// than guess when part of the phrase is not a date.
func (i *Interpreter) parsePhrase(utterance string, now time.Time) (time.Time, bool) {
	dt, err := dps.Parse(&dps.Configuration{
		Languages:           []string{"en"},
		CurrentTime:         now,
		DefaultTimezone:     i.location,
		PreferredDateSource: dps.Future,
	}, utterance)
	if err != nil || dt.Time.IsZero() {
		i.logger.Debug("dateparser found no date", zap.String("utterance", utterance), zap.Error(err))
		return time.Time{}, false
	}
	return dt.Time.In(i.location), true
}

// unmatched returns the utterance with the matched span cut out
func unmatched(utterance string, index int, matched string) string {
	end := index + len(matched)
	if index < 0 || end > len(utterance) {
		return utterance
	}
	return utterance[:index] + " " + utterance[end:]
}

var temporalWords = map[string]bool{
	"today": true, "tomorrow": true, "tonight": true, "yesterday": true,
	"day": true, "days": true, "week": true, "weeks": true, "weekend": true,
	"month": true, "months": true, "year": true, "years": true,
	"hour": true, "hours": true, "minute": true, "minutes": true,
	"after": true, "before": true, "next": true, "last": true, "past": true,
	"half": true, "quarter": true, "noon": true, "midnight": true,
	"morning": true, "afternoon": true, "evening": true, "night": true,
	"am": true, "pm": true, "o'clock": true, "oclock": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true, "june": true,
	"july": true, "august": true, "september": true, "october": true,
	"november": true, "december": true,
}

// hasTemporalWords reports whether s still names a date or time
func hasTemporalWords(s string) bool {
	for _, word := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		if temporalWords[word] {
			return true
		}
		for _, r := range word {
			if unicode.IsDigit(r) {
				return true
			}
		}
	}
	return false
}
