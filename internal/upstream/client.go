package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/campus-quiz-core/internal/domain"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream api error: status=%d body=%s", e.Status, e.Body)
}

// Client talks to the question generator and the identity directory.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

type wireQuestion struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

type generateResponse struct {
	Questions []wireQuestion `json:"questions"`
}

type profileResponse struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatarUrl"`
}

// GenerateQuestions asks the generator for n questions on topic. Results are
// validated before they are returned.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, n int) ([]domain.Question, error) {
	var resp generateResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/questions/generate", generateRequest{Topic: topic, Count: n}, &resp, true); err != nil {
		return nil, err
	}
	out := make([]domain.Question, 0, len(resp.Questions))
	for _, q := range resp.Questions {
		out = append(out, domain.Question{Text: q.Text, Options: q.Options, CorrectIndex: q.CorrectIndex})
	}
	if err := domain.ValidateQuestions(out); err != nil {
		return nil, fmt.Errorf("generator returned invalid questions: %w", err)
	}
	return out, nil
}

// LookupProfile fetches display attributes. Unknown users yield domain.ErrNotFound.
func (c *Client) LookupProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var resp profileResponse
	err := c.doJSON(ctx, fasthttp.MethodGet, "/users/"+url.PathEscape(userID)+"/profile", nil, &resp, true)
	var se *StatusError
	if errors.As(err, &se) && se.Status == fasthttp.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resp.UserID == "" {
		resp.UserID = userID
	}
	return &domain.Profile{UserID: resp.UserID, Name: resp.Name, Handle: resp.Handle, AvatarURL: resp.AvatarURL}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	uri := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = max(c.retryMax, 1)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			serr := &StatusError{Status: status, Body: truncate(string(resp.Body()), 512)}
			if attempt == attempts || !shouldRetryStatus(status) {
				return serr
			}
			lastErr = serr
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
