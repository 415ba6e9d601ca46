// Package ratelimit enforces per-category call budgets against the platform API.
//
// Every remote action belongs to a Category (search, favorite, repost,
// media_upload, post_create) with a static Limit of MaxCalls per Window.
// The Tracker keeps one resetting Window per category:
//
//	tracker, _ := ratelimit.NewTracker(ratelimit.DefaultLimits(), nil, log)
//
//	if err := tracker.Acquire(ctx, ratelimit.CategoryFavorite); err != nil {
//	    return err // context cancelled while waiting
//	}
//	err := client.Favorite(ctx, id)
//	tracker.Record(ratelimit.CategoryFavorite)
//
// Acquire never drops work: once a category has MaxCalls recorded calls it
// blocks until the window has elapsed since it started, then resets the count
// and lets the caller through. Record is the caller's responsibility so that
// only completed exchanges are counted.
//
// Clock decouples the package from wall time; ManualClock drives tests.
package ratelimit
