// Package retry provides exponential backoff and retry logic for transient
// failures in HTTP exchanges with the GIF provider and the platform API.
//
// Basic usage:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return client.search(ctx, term)
//	}, nil)
//
//	// Policy from the configuration file
//	cfg := retry.FromSettings(appCfg.Retry, log)
//	url, err := retry.DoWithResult(ctx, fetchURL, cfg)
//
//	// HTTP-specific retrier with error-type backoff
//	retrier := retry.NewHTTPRetrier(3, log)
//	err := retrier.Do(ctx, download)
//
// Error Type Handling:
//
// Network, rate limit and server errors are retried, each with its own
// backoff. Auth, not found, rejected and media too large errors are returned
// immediately. Context cancellation is never retried.
package retry
