// Package tenor is a small client for the Tenor v2 GIF search API.
//
// RandomGIF runs one search (up to 50 results) and picks a result uniformly at
// random; Download streams the chosen rendition. Requests are paced with a
// token bucket and transient failures are retried.
package tenor
