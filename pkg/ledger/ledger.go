// Package ledger meters daily usage of the generative provider.
//
// Two resource kinds are counted independently against a calendar-day
// boundary. Counters reset lazily: a counter stamped with an earlier day
// reads as zero and is rewritten on the next Record. Text exhaustion also
// blocks image generation; image exhaustion never blocks text.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mihaimyh/promptstudio/pkg/kv"
	"github.com/mihaimyh/promptstudio/pkg/obs"
)

// Kind identifies a metered resource.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Kinds lists every metered resource.
var Kinds = []Kind{KindText, KindImage}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindText, KindImage:
		return Kind(s), nil
	}
	return "", fmt.Errorf("ledger: unknown kind %q", s)
}

func (k Kind) key() string {
	if k == KindImage {
		return kv.KeyImageUsage
	}
	return kv.KeyTextUsage
}

// Counter is the persisted usage of one kind on one day.
type Counter struct {
	Count int    `json:"count"`
	Day   string `json:"date"`
}

// Normalize returns c as seen on today: a counter from another day reads as
// zero on today, and negative counts are clamped.
func Normalize(c Counter, today string) Counter {
	if c.Day != today {
		return Counter{Count: 0, Day: today}
	}
	if c.Count < 0 {
		c.Count = 0
	}
	return c
}

// Limits are the daily allowances per kind.
type Limits struct {
	Text  int
	Image int
}

// DefaultLimits returns the built-in daily allowances.
func DefaultLimits() Limits {
	return Limits{Text: 100, Image: 50}
}

func (l Limits) of(k Kind) int {
	if k == KindImage {
		return l.Image
	}
	return l.Text
}

// Config configures a Ledger.
type Config struct {
	Limits Limits

	// Location defines the day boundary (default: UTC)
	Location *time.Location

	// Now is the clock (default: time.Now)
	Now func() time.Time

	Logger  obs.Logger
	Metrics obs.Metrics
}

// Ledger tracks per-kind daily usage in a kv.Store.
// It never returns errors: storage failures are logged and a failed read
// counts as an empty counter.
type Ledger struct {
	store   kv.Store
	limits  Limits
	loc     *time.Location
	now     func() time.Time
	logger  obs.Logger
	metrics obs.Metrics

	// serializes read-modify-write in Record
	mu sync.Mutex
}

// New creates a Ledger backed by store.
func New(store kv.Store, config Config) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: store is required")
	}
	if config.Limits.Text < 0 || config.Limits.Image < 0 {
		return nil, fmt.Errorf("ledger: limits must be positive, got text=%d image=%d",
			config.Limits.Text, config.Limits.Image)
	}
	if config.Limits.Text == 0 {
		config.Limits.Text = DefaultLimits().Text
	}
	if config.Limits.Image == 0 {
		config.Limits.Image = DefaultLimits().Image
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = &obs.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &obs.NoopMetrics{}
	}

	return &Ledger{
		store:   store,
		limits:  config.Limits,
		loc:     config.Location,
		now:     config.Now,
		logger:  config.Logger,
		metrics: config.Metrics,
	}, nil
}

// Limits returns the configured allowances.
func (l *Ledger) Limits() Limits {
	return l.limits
}

func (l *Ledger) today() string {
	return DayKey(l.now(), l.loc)
}

// load reads today's counter of kind. Missing and undecodable counters read
// as empty. A failed store read also reads as empty but is returned as an
// error so that callers about to write can back off.
func (l *Ledger) load(ctx context.Context, kind Kind) (Counter, error) {
	var c Counter
	start := time.Now()
	data, err := l.store.Get(ctx, kind.key())
	if errors.Is(err, kv.ErrNotFound) {
		err = nil
	}
	l.metrics.RecordStorageOperation("ledger_get", time.Since(start), err)
	if err != nil {
		l.logger.Error("failed to read usage counter, treating as empty",
			obs.F("kind", string(kind)), obs.Err(err))
		return Normalize(Counter{}, l.today()), err
	}
	if data != nil {
		if derr := json.Unmarshal(data, &c); derr != nil {
			l.logger.Error("discarding undecodable usage counter",
				obs.F("kind", string(kind)), obs.Err(derr))
			c = Counter{}
		}
	}
	return Normalize(c, l.today()), nil
}

func (l *Ledger) peek(ctx context.Context, kind Kind) Counter {
	c, _ := l.load(ctx, kind)
	return c
}

// Usage returns the counter of kind as of today.
func (l *Ledger) Usage(ctx context.Context, kind Kind) Counter {
	return l.peek(ctx, kind)
}

// CheckAvailable reports whether amount more units of kind fit today's
// limits. It never mutates state. An amount below 1 is checked as 1.
func (l *Ledger) CheckAvailable(ctx context.Context, kind Kind, amount int) bool {
	allowed := l.checkAvailable(ctx, kind, amount)
	l.metrics.RecordGate(string(kind), allowed)
	return allowed
}

func (l *Ledger) checkAvailable(ctx context.Context, kind Kind, amount int) bool {
	if amount < 1 {
		amount = 1
	}

	text := l.peek(ctx, KindText)
	if text.Count >= l.limits.Text {
		return false
	}

	switch kind {
	case KindText:
		return text.Count+amount <= l.limits.Text
	case KindImage:
		image := l.peek(ctx, KindImage)
		return image.Count+amount <= l.limits.Image
	default:
		return false
	}
}

// Record adds amount units to today's counter of kind and persists it.
// Non-positive amounts are ignored.
func (l *Ledger) Record(ctx context.Context, kind Kind, amount int) {
	if amount <= 0 {
		return
	}
	if _, err := ParseKind(string(kind)); err != nil {
		l.logger.Warn("ignoring usage for unknown kind", obs.F("kind", string(kind)))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Writing back over an unreadable counter would drop the day's usage.
	c, err := l.load(ctx, kind)
	if err != nil {
		l.logger.Error("usage not recorded, counter unreadable",
			obs.F("kind", string(kind)), obs.F("amount", amount), obs.Err(err))
		return
	}
	c.Count += amount

	start := time.Now()
	err = kv.SetJSON(ctx, l.store, kind.key(), c)
	l.metrics.RecordStorageOperation("ledger_set", time.Since(start), err)
	if err != nil {
		l.logger.Error("failed to persist usage counter",
			obs.F("kind", string(kind)), obs.F("count", c.Count), obs.Err(err))
	}

	l.metrics.RecordUsage(string(kind), amount)
	l.logger.Debug("usage recorded",
		obs.F("kind", string(kind)), obs.F("amount", amount), obs.F("count", c.Count))
}

// TimeUntilReset returns the time left until the next day starts.
func (l *Ledger) TimeUntilReset() time.Duration {
	now := l.now()
	return NextDayStart(now, l.loc).Sub(now)
}

// Display is a snapshot of one kind's standing for presentation.
type Display struct {
	Kind      Kind          `json:"kind"`
	Count     int           `json:"count"`
	Limit     int           `json:"limit"`
	Exhausted bool          `json:"exhausted"`
	ResetIn   time.Duration `json:"reset_in_ns,omitempty"`
}

// String renders either "text usage: 4/100" or a reset countdown.
func (d Display) String() string {
	if d.Exhausted {
		return fmt.Sprintf("%s quota reached, resets in %s", d.Kind, FormatCountdown(d.ResetIn))
	}
	return fmt.Sprintf("%s usage: %d/%d", d.Kind, d.Count, d.Limit)
}

// RemainingDisplay returns the standing of kind. The image kind counts as
// exhausted when either the text or the image limit has been reached.
func (l *Ledger) RemainingDisplay(ctx context.Context, kind Kind) Display {
	c := l.peek(ctx, kind)
	d := Display{Kind: kind, Count: c.Count, Limit: l.limits.of(kind)}

	d.Exhausted = c.Count >= d.Limit
	if kind == KindImage && !d.Exhausted {
		d.Exhausted = l.peek(ctx, KindText).Count >= l.limits.Text
	}
	if d.Exhausted {
		d.ResetIn = l.TimeUntilReset()
	}
	return d
}
