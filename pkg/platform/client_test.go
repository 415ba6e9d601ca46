package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigmabot/pkg/config"
	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/logger"
)

const testToken = "session-token"

// fakeAPI is an in-memory stand-in for the platform API
type fakeAPI struct {
	t          *testing.T
	requestIDs []string
	favorited  []string
	reposted   []string
	uploads    []string
	posts      []createPostRequest
	uploadFail int
	uploadBody string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requestIDs = append(f.requestIDs, r.Header.Get("X-Request-ID"))

	if r.URL.Path == LoginEndpoint {
		var creds Credentials
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"code":32,"message":"Could not authenticate you"}]}`))
			return
		}
		json.NewEncoder(w).Encode(loginResponse{Token: testToken})
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.URL.Path == SearchEndpoint:
		json.NewEncoder(w).Encode(SearchResponse{Posts: []Post{
			{ID: "1", Text: "buy " + r.URL.Query().Get("q"), Author: User{Name: "Alice", ScreenName: "alice"}},
		}})
	case strings.HasSuffix(r.URL.Path, "/favorite"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, PostsEndpoint+"/"), "/favorite")
		if id == "404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.favorited = append(f.favorited, id)
		w.Write([]byte(`{}`))
	case strings.HasSuffix(r.URL.Path, "/repost"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, PostsEndpoint+"/"), "/repost")
		if id == "dup" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"You have already reposted this post"}`))
			return
		}
		f.reposted = append(f.reposted, id)
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == MediaUploadEndpoint:
		if f.uploadFail != 0 {
			w.WriteHeader(f.uploadFail)
			w.Write([]byte(f.uploadBody))
			return
		}
		file, header, err := r.FormFile("media")
		require.NoError(f.t, err)
		data, _ := io.ReadAll(file)
		f.uploads = append(f.uploads, header.Filename+":"+string(data))
		w.Write([]byte(`{"media_id":"m-1"}`))
	case r.URL.Path == PostsEndpoint:
		var req createPostRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.posts = append(f.posts, req)
		w.Write([]byte(`{"id":"p-1"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{t: t}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig().Platform
	cfg.BaseURL = server.URL + "/"
	cfg.RequestTimeout = 5 * time.Second
	return NewClient(cfg, logger.NewTestLogger()), api
}

func login(t *testing.T, c *Client) {
	t.Helper()
	require.NoError(t, c.Login(context.Background(), Credentials{Username: "bot", Email: "bot@example.com", Password: "hunter2"}))
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t)
	assert.False(t, client.LoggedIn())

	login(t, client)
	assert.True(t, client.LoggedIn())
}

func TestLoginFailures(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.Login(context.Background(), Credentials{Username: "bot", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Contains(t, err.Error(), "Could not authenticate you")
	assert.False(t, client.LoggedIn())

	err = client.Login(context.Background(), Credentials{})
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
}

func TestSearch(t *testing.T) {
	client, api := newTestClient(t)
	login(t, client)

	posts, err := client.Search(context.Background(), "$sigma", "")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "1", posts[0].ID)
	assert.Equal(t, "Alice", posts[0].Author.Name)
	assert.Equal(t, "alice", posts[0].Author.ScreenName)
	assert.Equal(t, "buy $sigma", posts[0].Text)

	for _, id := range api.requestIDs {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, api.requestIDs[0], api.requestIDs[1])
}

func TestRequiresLogin(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Search(context.Background(), "$sigma", SearchModeLatest)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
}

func TestFavoriteAndRepost(t *testing.T) {
	client, api := newTestClient(t)
	login(t, client)
	ctx := context.Background()

	require.NoError(t, client.Favorite(ctx, "7"))
	require.NoError(t, client.Repost(ctx, "7"))
	assert.Equal(t, []string{"7"}, api.favorited)
	assert.Equal(t, []string{"7"}, api.reposted)

	err := client.Favorite(ctx, "404")
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
	assert.True(t, errs.IsRemote(err))

	err = client.Repost(ctx, "dup")
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Contains(t, err.Error(), "already reposted")
}

func TestUploadMediaAndReply(t *testing.T) {
	client, api := newTestClient(t)
	login(t, client)
	ctx := context.Background()

	mediaID, err := client.UploadMedia(ctx, "/tmp/scratch/abc.gif", strings.NewReader("GIF89a"))
	require.NoError(t, err)
	assert.Equal(t, "m-1", mediaID)
	assert.Equal(t, []string{"abc.gif:GIF89a"}, api.uploads)

	id, err := client.CreatePost(ctx, "$SIGMA", []string{mediaID}, "7")
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)
	require.Len(t, api.posts, 1)
	assert.Equal(t, createPostRequest{Text: "$SIGMA", MediaIDs: []string{"m-1"}, ReplyTo: "7"}, api.posts[0])
}

func TestUploadMediaTooLarge(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"413", http.StatusRequestEntityTooLarge, ""},
		{"size message", http.StatusBadRequest, `{"error":"File size exceeds 5242880 bytes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, api := newTestClient(t)
			login(t, client)
			api.uploadFail = tt.status
			api.uploadBody = tt.body

			_, err := client.UploadMedia(context.Background(), "a.gif", strings.NewReader("GIF89a"))
			assert.True(t, errs.Is(err, errs.ErrorTypeMediaTooLarge), "got %v", err)
		})
	}
}

func TestNetworkErrorIsNotRemote(t *testing.T) {
	cfg := config.DefaultConfig().Platform
	cfg.BaseURL = "http://127.0.0.1:1"
	client := NewClient(cfg, logger.NewNopLogger())

	_, err := client.Search(context.Background(), "$sigma", SearchModeLatest)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork))
	assert.False(t, errs.IsRemote(err))
}

func TestCancelledRequest(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Favorite(ctx, "7")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEndpoints(t *testing.T) {
	assert.Equal(t, "https://api.example/search?mode=Latest&q=%24sigma", SearchURL("https://api.example", "$sigma", "Latest"))
	assert.Equal(t, "https://api.example/posts/a%2Fb/favorite", FavoriteURL("https://api.example", "a/b"))
	assert.Equal(t, "https://api.example/posts/9/repost", RepostURL("https://api.example", "9"))
}
