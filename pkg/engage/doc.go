// Package engage runs the bot's engagement cycle.
//
// An Engager supervises sessions. Each session logs in once and then polls:
//
//	search (quota: search)
//	for each match, in order:
//	    favorite      (quota: favorite)
//	    repost        (quota: repost)
//	    fetch and fit a GIF
//	    upload it     (quota: media_upload)
//	    reply with it (quota: post_create)
//	sleep the poll interval
//
// Rejections answered by the platform are logged per step and the remaining
// steps still run. Missing media and size rejections skip the reply. Any
// other error abandons only the current post.
//
// Errors escaping a session are logged, followed by a cooldown and a new
// session. A refused first login is fatal; cancelling the context ends Run
// with nil.
//
// Usage:
//
//	e := engage.New(engage.Deps{
//	    Platform:    client,
//	    Media:       fetcher,
//	    Quota:       tracker,
//	    Credentials: creds,
//	}, cfg.Engagement)
//	if err := e.Run(ctx); err != nil {
//	    return err
//	}
package engage
