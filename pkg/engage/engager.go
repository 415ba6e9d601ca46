package engage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"sigmabot/pkg/config"
	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/logger"
	"sigmabot/pkg/media"
	"sigmabot/pkg/platform"
	"sigmabot/pkg/ratelimit"
)

// Platform is the subset of the social platform API the engager drives
type Platform interface {
	Login(ctx context.Context, creds platform.Credentials) error
	Search(ctx context.Context, query, mode string) ([]platform.Post, error)
	Favorite(ctx context.Context, postID string) error
	Repost(ctx context.Context, postID string) error
	UploadMedia(ctx context.Context, filename string, r io.Reader) (string, error)
	CreatePost(ctx context.Context, text string, mediaIDs []string, replyTo string) (string, error)
}

// MediaFetcher produces a fitted GIF for a search term
type MediaFetcher interface {
	Fetch(ctx context.Context, term string) (*media.Artifact, error)
}

// Quota gates every remote action
type Quota interface {
	Acquire(ctx context.Context, c ratelimit.Category) error
	Record(c ratelimit.Category)
	Snapshot() []ratelimit.Status
}

// Deps are the collaborators of an Engager
type Deps struct {
	Platform    Platform
	Media       MediaFetcher
	Quota       Quota
	Credentials platform.Credentials

	// Optional
	Clock    ratelimit.Clock
	Logger   logger.Logger
	Observer Observer
}

// FatalError ends Run instead of triggering a cooldown
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop the process
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Engager runs the search, favorite, repost and reply cycle forever
type Engager struct {
	deps     Deps
	cfg      config.EngagementConfig
	clock    ratelimit.Clock
	log      logger.Logger
	observer Observer
	seen     *seenSet
	stats    *statsCounter
}

// New creates an Engager. Zero-valued settings take the configuration defaults.
func New(deps Deps, cfg config.EngagementConfig) *Engager {
	defaults := config.DefaultConfig().Engagement
	if cfg.SearchQuery == "" {
		cfg.SearchQuery = defaults.SearchQuery
	}
	if cfg.SearchMode == "" {
		cfg.SearchMode = defaults.SearchMode
	}
	if cfg.MediaTerm == "" {
		cfg.MediaTerm = defaults.MediaTerm
	}
	if cfg.ReplyText == "" {
		cfg.ReplyText = defaults.ReplyText
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaults.Cooldown
	}

	clock := deps.Clock
	if clock == nil {
		clock = ratelimit.SystemClock{}
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	e := &Engager{
		deps:     deps,
		cfg:      cfg,
		clock:    clock,
		log:      logger.Component(deps.Logger, "engage"),
		observer: observer,
		stats:    &statsCounter{},
	}
	if cfg.SeenWindow > 0 {
		e.seen = newSeenSet(cfg.SeenWindow)
	}
	return e
}

// Stats returns a copy of the running counters
func (e *Engager) Stats() Stats {
	return e.stats.snapshot()
}

// Run supervises sessions until ctx is cancelled. It returns nil on
// cancellation and a FatalError when the first login is refused.
func (e *Engager) Run(ctx context.Context) error {
	logger.LogComponentStart(e.log, "engage", map[string]interface{}{
		"query":         e.cfg.SearchQuery,
		"mode":          e.cfg.SearchMode,
		"media_term":    e.cfg.MediaTerm,
		"poll_interval": e.cfg.PollInterval,
		"cooldown":      e.cfg.Cooldown,
		"seen_window":   e.cfg.SeenWindow,
	})

	for session := 1; ; session++ {
		err := e.runSession(ctx, session)
		if ctx.Err() != nil {
			logger.LogComponentStop(e.log, "engage", "context cancelled")
			return nil
		}
		if IsFatal(err) {
			e.log.WithError(err).Error("Stopping on fatal error")
			logger.LogComponentStop(e.log, "engage", "fatal error")
			return err
		}

		e.stats.add(func(s *Stats) { s.SessionErrors++ })
		e.log.WithError(err).WithFields(map[string]interface{}{
			"session":  session,
			"cooldown": e.cfg.Cooldown,
		}).Error("Session failed, cooling down before a new session")
		e.observer.Observe(Event{
			Time:   e.clock.Now(),
			Action: ActionSessionError,
			Err:    err,
		})

		if err := e.clock.Sleep(ctx, e.cfg.Cooldown); err != nil {
			logger.LogComponentStop(e.log, "engage", "context cancelled")
			return nil
		}
	}
}

// runSession logs in and polls until an error escapes the poll loop.
// Panics become session errors, except misconfigured quota categories,
// which no new session can fix.
func (e *Engager) runSession(ctx context.Context, session int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("stack", string(debug.Stack())).Error("Recovered from panic in session")
			var unknown *ratelimit.UnknownCategoryError
			if perr, ok := r.(error); ok && errors.As(perr, &unknown) {
				err = &FatalError{Err: perr}
				return
			}
			err = fmt.Errorf("session panic: %v", r)
		}
	}()

	e.stats.add(func(s *Stats) { s.Sessions++ })
	if err := e.login(ctx, session); err != nil {
		return err
	}
	return e.pollLoop(ctx)
}

func (e *Engager) login(ctx context.Context, session int) error {
	log := e.log.WithFields(map[string]interface{}{
		"session":  session,
		"username": e.deps.Credentials.Username,
	})

	err := e.deps.Platform.Login(ctx, e.deps.Credentials)
	e.observer.Observe(Event{Time: e.clock.Now(), Action: ActionLogin, Err: err})
	if err != nil {
		err = fmt.Errorf("login failed: %w", err)
		if session == 1 && errs.Is(err, errs.ErrorTypeAuth) {
			return &FatalError{Err: err}
		}
		return err
	}

	log.Info("Logged in")
	return nil
}

// record counts a finished exchange against c. Transport failures without
// a response are not counted.
func (e *Engager) record(c ratelimit.Category, err error) {
	if err == nil || errs.IsRemote(err) {
		e.deps.Quota.Record(c)
	}
}
