package engage

import (
	"sync"
	"time"

	"sigmabot/pkg/ratelimit"
)

// Action names carried by events and log lines
const (
	ActionLogin        = "login"
	ActionSearch       = "search"
	ActionFavorite     = "favorite"
	ActionRepost       = "repost"
	ActionUpload       = "media_upload"
	ActionReply        = "reply"
	ActionSkipMedia    = "skip_media"
	ActionAbandon      = "abandon"
	ActionSessionError = "session_error"
)

// Stats are the engager's running counters
type Stats struct {
	Sessions      int
	SessionErrors int
	Polls         int
	Processed     int
	Duplicates    int
	Abandoned     int
	Favorited     int
	Reposted      int
	Uploaded      int
	Replied       int
	MediaSkipped  int
	Failures      int
}

type statsCounter struct {
	mu    sync.Mutex
	stats Stats
}

// add applies fn under the lock and returns the updated counters
func (c *statsCounter) add(fn func(s *Stats)) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
	return c.stats
}

func (c *statsCounter) action(action string, err error) {
	c.add(func(s *Stats) {
		if err != nil {
			s.Failures++
			return
		}
		switch action {
		case ActionFavorite:
			s.Favorited++
		case ActionRepost:
			s.Reposted++
		case ActionUpload:
			s.Uploaded++
		case ActionReply:
			s.Replied++
		}
	})
}

func (c *statsCounter) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Event describes one thing the engager did
type Event struct {
	Time   time.Time
	Action string
	PostID string
	Author string
	Err    error
}

// Observer receives engager activity, e.g. to drive a dashboard.
// Calls happen on the engager goroutine and must not block.
type Observer interface {
	Observe(ev Event)
	PollCompleted(stats Stats, quota []ratelimit.Status)
}

type nopObserver struct{}

func (nopObserver) Observe(Event)                           {}
func (nopObserver) PollCompleted(Stats, []ratelimit.Status) {}

// Observers fans activity out to several observers
type Observers []Observer

func (o Observers) Observe(ev Event) {
	for _, obs := range o {
		obs.Observe(ev)
	}
}

func (o Observers) PollCompleted(stats Stats, quota []ratelimit.Status) {
	for _, obs := range o {
		obs.PollCompleted(stats, quota)
	}
}
