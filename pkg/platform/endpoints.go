package platform

import (
	"fmt"
	"net/url"
)

const (
	// LoginEndpoint exchanges credentials for a session token
	LoginEndpoint = "/auth/login"

	// SearchEndpoint returns posts matching a query
	SearchEndpoint = "/search"

	// MediaUploadEndpoint accepts a multipart media upload
	MediaUploadEndpoint = "/media/upload"

	// PostsEndpoint creates posts and replies
	PostsEndpoint = "/posts"

	// SearchModeLatest orders search results newest first
	SearchModeLatest = "Latest"

	// mediaTooLargeMarker appears in upload rejections for oversized media
	mediaTooLargeMarker = "File size exceeds"
)

// SearchURL builds the search URL for query and mode
func SearchURL(base, query, mode string) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("mode", mode)
	return fmt.Sprintf("%s%s?%s", base, SearchEndpoint, params.Encode())
}

// FavoriteURL builds the favorite URL for a post
func FavoriteURL(base, postID string) string {
	return fmt.Sprintf("%s%s/%s/favorite", base, PostsEndpoint, url.PathEscape(postID))
}

// RepostURL builds the repost URL for a post
func RepostURL(base, postID string) string {
	return fmt.Sprintf("%s%s/%s/repost", base, PostsEndpoint, url.PathEscape(postID))
}
