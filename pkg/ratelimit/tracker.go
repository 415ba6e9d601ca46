package ratelimit

import (
	"context"
	"fmt"
	"time"

	"sigmabot/pkg/config"
	"sigmabot/pkg/logger"
)

// Category is a remote action class with its own call budget
type Category string

const (
	CategorySearch      Category = "search"
	CategoryFavorite    Category = "favorite"
	CategoryRepost      Category = "repost"
	CategoryMediaUpload Category = "media_upload"
	CategoryPostCreate  Category = "post_create"
)

// Categories returns every known category in a stable order
func Categories() []Category {
	return []Category{
		CategorySearch,
		CategoryFavorite,
		CategoryRepost,
		CategoryMediaUpload,
		CategoryPostCreate,
	}
}

// Limit is the static budget of one category
type Limit struct {
	MaxCalls int
	Window   time.Duration
}

// DefaultLimits returns the platform's published budgets
func DefaultLimits() map[Category]Limit {
	return LimitsFromConfig(config.DefaultConfig().Quota)
}

// LimitsFromConfig converts the quota configuration section into limits
func LimitsFromConfig(q config.QuotaConfig) map[Category]Limit {
	return map[Category]Limit{
		CategorySearch:      {MaxCalls: q.Search.MaxCalls, Window: q.Search.Window},
		CategoryFavorite:    {MaxCalls: q.Favorite.MaxCalls, Window: q.Favorite.Window},
		CategoryRepost:      {MaxCalls: q.Repost.MaxCalls, Window: q.Repost.Window},
		CategoryMediaUpload: {MaxCalls: q.MediaUpload.MaxCalls, Window: q.MediaUpload.Window},
		CategoryPostCreate:  {MaxCalls: q.PostCreate.MaxCalls, Window: q.PostCreate.Window},
	}
}

// Tracker owns one resetting Window per category. It is consulted before
// every remote action: Acquire before the call, Record after the exchange.
type Tracker struct {
	windows map[Category]*Window
	clock   Clock
	logger  logger.Logger
}

// NewTracker creates a tracker with a window for every category
func NewTracker(limits map[Category]Limit, clock Clock, log logger.Logger) (*Tracker, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logger.GetLogger()
	}

	windows := make(map[Category]*Window, len(limits))
	for _, c := range Categories() {
		limit, ok := limits[c]
		if !ok {
			return nil, fmt.Errorf("missing limit for category %s", c)
		}
		if limit.MaxCalls <= 0 || limit.Window <= 0 {
			return nil, fmt.Errorf("invalid limit for category %s: %d calls per %s", c, limit.MaxCalls, limit.Window)
		}
		windows[c] = NewWindow(limit.MaxCalls, limit.Window, clock)
	}

	return &Tracker{
		windows: windows,
		clock:   clock,
		logger:  logger.Component(log, "quota"),
	}, nil
}

// UnknownCategoryError is the panic value raised when a tracker is asked
// about a category it was not configured with
type UnknownCategoryError struct {
	Category Category
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("ratelimit: unknown category %q", string(e.Category))
}

// window looks up a category's window. An unknown category is a programming
// error and panics with an *UnknownCategoryError.
func (t *Tracker) window(c Category) *Window {
	w, ok := t.windows[c]
	if !ok {
		panic(&UnknownCategoryError{Category: c})
	}
	return w
}

// Acquire suspends until category c has capacity in its current window
func (t *Tracker) Acquire(ctx context.Context, c Category) error {
	return t.window(c).Wait(ctx, func(wait time.Duration) {
		logger.LogQuotaWait(t.logger, string(c), wait)
	})
}

// Record counts one completed exchange against category c
func (t *Tracker) Record(c Category) {
	t.window(c).Record()
}

// Reset starts a fresh window for category c
func (t *Tracker) Reset(c Category) {
	t.window(c).Reset()
}

// Snapshot returns the state of every window
func (t *Tracker) Snapshot() []Status {
	out := make([]Status, 0, len(t.windows))
	for _, c := range Categories() {
		out = append(out, t.windows[c].status(c))
	}
	return out
}

// Clock returns the clock driving the tracker
func (t *Tracker) Clock() Clock {
	return t.clock
}
