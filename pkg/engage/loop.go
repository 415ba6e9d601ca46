package engage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/logger"
	"sigmabot/pkg/media"
	"sigmabot/pkg/platform"
	"sigmabot/pkg/ratelimit"
)

// pollLoop searches, works through the matches and sleeps, forever.
// Only search failures and cancellation end it.
func (e *Engager) pollLoop(ctx context.Context) error {
	for {
		posts, err := e.search(ctx)
		if err != nil {
			return err
		}

		if err := e.matchLoop(ctx, posts); err != nil {
			return err
		}

		stats := e.stats.add(func(s *Stats) { s.Polls++ })
		e.log.WithFields(map[string]interface{}{
			"matches":      len(posts),
			"processed":    stats.Processed,
			"favorited":    stats.Favorited,
			"reposted":     stats.Reposted,
			"replied":      stats.Replied,
			"failures":     stats.Failures,
			"next_poll_in": e.cfg.PollInterval,
		}).Info("Poll completed")
		e.observer.PollCompleted(stats, e.deps.Quota.Snapshot())

		if err := e.clock.Sleep(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (e *Engager) search(ctx context.Context) ([]platform.Post, error) {
	if err := e.deps.Quota.Acquire(ctx, ratelimit.CategorySearch); err != nil {
		return nil, err
	}

	posts, err := e.deps.Platform.Search(ctx, e.cfg.SearchQuery, e.cfg.SearchMode)
	e.record(ratelimit.CategorySearch, err)
	e.observer.Observe(Event{Time: e.clock.Now(), Action: ActionSearch, Err: err})
	if err != nil {
		return nil, fmt.Errorf("search %q failed: %w", e.cfg.SearchQuery, err)
	}

	e.log.WithFields(map[string]interface{}{
		"query":   e.cfg.SearchQuery,
		"matches": len(posts),
	}).Debug("Search completed")
	return posts, nil
}

// matchLoop processes posts in encounter order. A failing post is
// abandoned; only cancellation stops the loop.
func (e *Engager) matchLoop(ctx context.Context, posts []platform.Post) error {
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.seen != nil && e.seen.Contains(post.ID) {
			e.stats.add(func(s *Stats) { s.Duplicates++ })
			e.postLogger(post).Debug("Skipping already processed post")
			continue
		}

		if err := e.process(ctx, post); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			e.stats.add(func(s *Stats) { s.Abandoned++ })
			e.postLogger(post).WithError(err).Error("Error processing post")
			e.observer.Observe(e.event(ActionAbandon, post, err))
			continue
		}

		if e.seen != nil {
			e.seen.Add(post.ID)
		}
	}
	return nil
}

// process favorites, reposts and replies to one post. Remote rejections
// are reported per step and do not stop the remaining steps.
func (e *Engager) process(ctx context.Context, post platform.Post) error {
	err := e.step(ctx, post, ActionFavorite, ratelimit.CategoryFavorite, func(ctx context.Context) error {
		return e.deps.Platform.Favorite(ctx, post.ID)
	})
	if abandons(err) {
		return err
	}

	err = e.step(ctx, post, ActionRepost, ratelimit.CategoryRepost, func(ctx context.Context) error {
		return e.deps.Platform.Repost(ctx, post.ID)
	})
	if abandons(err) {
		return err
	}

	if err := e.reply(ctx, post); err != nil {
		return err
	}

	e.stats.add(func(s *Stats) { s.Processed++ })
	e.postLogger(post).WithField("text", post.Text).Info("Processed post")
	return nil
}

// reply fetches a fitted GIF and posts it as a reply. Missing media and
// size rejections skip the reply without failing the post.
func (e *Engager) reply(ctx context.Context, post platform.Post) error {
	log := e.postLogger(post)

	artifact, err := e.deps.Media.Fetch(ctx, e.cfg.MediaTerm)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, media.ErrNoMedia) {
			log.WithField("term", e.cfg.MediaTerm).Warn("No media found, skip media")
		} else {
			log.WithError(err).Warn("Failed to get media, skip media")
		}
		e.skipMedia(post, err)
		return nil
	}
	defer func() {
		if err := artifact.Close(); err != nil {
			log.WithError(err).Debug("Failed to remove media file")
		}
	}()

	if !artifact.Fits {
		log.WithFields(map[string]interface{}{
			"size":       artifact.Size,
			"iterations": artifact.Iterations,
		}).Warn("Media still above budget after fitting, uploading anyway")
	}

	var mediaID string
	err = e.step(ctx, post, ActionUpload, ratelimit.CategoryMediaUpload, func(ctx context.Context) error {
		f, err := artifact.Open()
		if err != nil {
			return fmt.Errorf("failed to open media file: %w", err)
		}
		defer f.Close()

		mediaID, err = e.deps.Platform.UploadMedia(ctx, filepath.Base(artifact.Path), f)
		return err
	})
	if err != nil {
		if errs.Is(err, errs.ErrorTypeMediaTooLarge) {
			log.WithError(err).WithField("size", artifact.Size).Warn("Media file size still too large after fitting")
			e.skipMedia(post, err)
			return nil
		}
		if abandons(err) {
			return err
		}
		return nil
	}

	err = e.step(ctx, post, ActionReply, ratelimit.CategoryPostCreate, func(ctx context.Context) error {
		_, err := e.deps.Platform.CreatePost(ctx, e.cfg.ReplyText, []string{mediaID}, post.ID)
		return err
	})
	if abandons(err) {
		return err
	}
	return nil
}

// step runs one quota-gated remote action and reports its outcome
func (e *Engager) step(ctx context.Context, post platform.Post, action string, c ratelimit.Category, call func(context.Context) error) error {
	if err := e.deps.Quota.Acquire(ctx, c); err != nil {
		return err
	}

	err := call(ctx)
	e.record(c, err)
	if err != nil && ctx.Err() != nil {
		return err
	}

	logger.LogAction(e.log, action, post.ID, post.Author.Name, err)
	e.stats.action(action, err)
	e.observer.Observe(e.event(action, post, err))
	return err
}

func (e *Engager) skipMedia(post platform.Post, err error) {
	e.stats.add(func(s *Stats) { s.MediaSkipped++ })
	e.observer.Observe(e.event(ActionSkipMedia, post, err))
}

func (e *Engager) postLogger(post platform.Post) logger.Logger {
	return e.log.WithFields(map[string]interface{}{
		"post_id": post.ID,
		"author":  post.Author.Name,
	})
}

func (e *Engager) event(action string, post platform.Post, err error) Event {
	return Event{
		Time:   e.clock.Now(),
		Action: action,
		PostID: post.ID,
		Author: post.Author.Name,
		Err:    err,
	}
}

// abandons reports whether err ends the work on the current post.
// Rejections answered by the platform do not.
func abandons(err error) bool {
	return err != nil && !errs.IsRemote(err)
}
