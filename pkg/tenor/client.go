package tenor

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"sigmabot/pkg/config"
	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/logger"
	"sigmabot/pkg/retry"
)

// Client talks to the Tenor GIF search API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	clientKey  string
	limit      int
	userAgent  string

	limiter *rate.Limiter
	retrier *retry.HTTPRetrier
	logger  logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClient creates a Tenor client. retryCfg may be nil for a single attempt
// per request.
func NewClient(cfg config.TenorConfig, retryCfg *retry.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if retryCfg == nil {
		retryCfg = &retry.Config{MaxAttempts: 1}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	resultLimit := cfg.ResultLimit
	if resultLimit <= 0 {
		resultLimit = 50
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		clientKey:  cfg.ClientKey,
		limit:      resultLimit,
		userAgent:  "sigmabot/" + logger.Version,
		limiter:    rate.NewLimiter(limit, 1),
		retrier:    retry.NewHTTPRetrierFromConfig(retryCfg),
		logger:     logger.Component(log, "tenor"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Search returns up to the configured number of results for term
func (c *Client) Search(ctx context.Context, term string) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("key", c.apiKey)
	q.Set("client_key", c.clientKey)
	q.Set("limit", strconv.Itoa(c.limit))
	endpoint := c.baseURL + "/v2/search?" + q.Encode()

	var out SearchResponse
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		out = SearchResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse search response: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("Search completed", map[string]interface{}{
		"term":    term,
		"results": len(out.Results),
	})
	return &out, nil
}

// RandomGIF searches for term and picks one result uniformly at random,
// returning its gif URL. ok is false when nothing usable was found.
func (c *Client) RandomGIF(ctx context.Context, term string) (string, bool, error) {
	resp, err := c.Search(ctx, term)
	if err != nil {
		return "", false, err
	}

	urls := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if u := r.GIFURL(); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return "", false, nil
	}

	c.mu.Lock()
	i := c.rng.Intn(len(urls))
	c.mu.Unlock()

	return urls[i], true, nil
}

// Download streams the resource at mediaURL into w. The request is retried
// until a response arrives; the body itself is copied once.
func (c *Client) Download(ctx context.Context, mediaURL string, w io.Writer) error {
	var resp *http.Response
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		r, err := c.get(ctx, mediaURL)
		if err != nil {
			return err
		}
		if err := c.checkResponseStatus(r); err != nil {
			r.Body.Close()
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, 0, "failed to read media body: %v", err)
	}

	c.logger.DebugWithFields("Downloaded media", map[string]interface{}{
		"url":   mediaURL,
		"bytes": n,
	})
	return nil
}

// get waits for the pacing limiter and sends a GET request
func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeInvalidInput, 0, "failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, image/gif")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WithError(err).WarnWithFields("HTTP request failed", map[string]interface{}{
			"method": req.Method,
			"host":   req.URL.Host,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	logger.LogRequest(c.logger, req.Method, redact(req.URL), resp.StatusCode, time.Since(start))
	return resp, nil
}

// checkResponseStatus maps non-200 responses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	host := ""
	if resp.Request != nil {
		host = resp.Request.URL.Host
	}
	return errs.New(errs.TypeForStatus(resp.StatusCode), resp.StatusCode,
		"unexpected status %d from %s", resp.StatusCode, host)
}

// redact strips the API key from logged URLs
func redact(u *url.URL) string {
	c := *u
	q := c.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		c.RawQuery = q.Encode()
	}
	return c.String()
}

// SetRand replaces the random source used to pick results
func (c *Client) SetRand(rng *rand.Rand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng = rng
}
