package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"sigmabot/pkg/config"
	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/logger"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 << 10

// Client is an authenticated session against the platform API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a platform client. It must Login before other calls.
func NewClient(cfg config.PlatformConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "sigmabot/" + logger.Version
	}
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "application/json",
			"Accept-Language": language,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger.Component(log, "platform"),
	}
}

// SetHeader sets a custom header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Login authenticates and stores the session token
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return errs.New(errs.ErrorTypeAuth, 0, "username and password are required")
	}

	var out loginResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+LoginEndpoint, creds, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return errs.New(errs.ErrorTypeAuth, http.StatusOK, "login response did not include a token")
	}

	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()

	c.logger.WithField("username", creds.Username).Info("Logged in")
	return nil
}

// LoggedIn reports whether a session token is held
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Search returns posts matching query in the given mode
func (c *Client) Search(ctx context.Context, query, mode string) ([]Post, error) {
	if mode == "" {
		mode = SearchModeLatest
	}

	var out SearchResponse
	if err := c.doJSON(ctx, http.MethodGet, SearchURL(c.baseURL, query, mode), nil, &out); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("Search completed", map[string]interface{}{
		"query":   query,
		"matches": len(out.Posts),
	})
	return out.Posts, nil
}

// Favorite marks a post as favorited
func (c *Client) Favorite(ctx context.Context, postID string) error {
	return c.doJSON(ctx, http.MethodPost, FavoriteURL(c.baseURL, postID), nil, nil)
}

// Repost shares a post
func (c *Client) Repost(ctx context.Context, postID string) error {
	return c.doJSON(ctx, http.MethodPost, RepostURL(c.baseURL, postID), nil, nil)
}

// UploadMedia uploads r as a multipart "media" part and returns the media ID.
// Oversized media yields an ErrorTypeMediaTooLarge error.
func (c *Client) UploadMedia(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read media: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+MediaUploadEndpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out mediaResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.MediaID == "" {
		return "", errs.New(errs.ErrorTypeParsing, http.StatusOK, "upload response did not include a media id")
	}
	return out.MediaID, nil
}

// CreatePost publishes text with optional media, as a reply when replyTo is set
func (c *Client) CreatePost(ctx context.Context, text string, mediaIDs []string, replyTo string) (string, error) {
	payload := createPostRequest{Text: text, MediaIDs: mediaIDs, ReplyTo: replyTo}

	var out createPostResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+PostsEndpoint, payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// doJSON sends an optional JSON payload and decodes the JSON response into
// target when target is non-nil
func (c *Client) doJSON(ctx context.Context, method, target string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errs.New(errs.ErrorTypeInvalidInput, 0, "failed to encode request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, target, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeInvalidInput, 0, "failed to create request: %v", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends req, maps failures to typed errors and decodes a 2xx body into out
func (c *Client) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.WithError(err).WarnWithFields("HTTP request failed", map[string]interface{}{
			"method": req.Method,
			"path":   req.URL.Path,
		})
		return errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger.WithField("request_id", req.Header.Get("X-Request-ID")),
		req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkResponseStatus(resp); err != nil {
		return err
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse response: %v", err)
	}
	return nil
}

// checkResponseStatus maps a non-2xx response to a typed error
func checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := http.StatusText(resp.StatusCode)
	var envelope apiError
	if json.Unmarshal(raw, &envelope) == nil && envelope.message() != "" {
		msg = envelope.message()
	}

	errorType := errs.TypeForStatus(resp.StatusCode)
	if strings.Contains(string(raw), mediaTooLargeMarker) {
		errorType = errs.ErrorTypeMediaTooLarge
	}

	return errs.New(errorType, resp.StatusCode, "%s", msg)
}
