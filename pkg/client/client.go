// Package client is a Go client for the solution submission and polling endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Solution statuses reported by the API.
const (
	StatusPending      = "pending"
	StatusMentorReview = "mentor_review"
	StatusReviewed     = "reviewed"
	StatusFailed       = "failed"
)

var (
	// ErrUpgradeRequired is returned before any request when a free profile asks for a mentor check.
	ErrUpgradeRequired = errors.New("mentor check requires the pro plan")
	// ErrCharLimit is returned before any request when the description exceeds the profile allowance.
	ErrCharLimit = errors.New("solution exceeds character limit")
)

// Profile is the caller information needed for the local submission gate.
type Profile struct {
	ID        uint   `json:"id"`
	Plan      string `json:"plan"`
	CharLimit int    `json:"char_limit"`
}

// IsPro reports whether the profile is on the paid tier.
func (p Profile) IsPro() bool {
	return strings.EqualFold(p.Plan, "pro")
}

// SubmitRequest is the body of a new solution.
type SubmitRequest struct {
	Description     string `json:"description"`
	TaskDescription string `json:"taskDescription,omitempty"`
	MentorCheck     bool   `json:"mentorCheck"`
	UserID          *uint  `json:"userId,omitempty"`
}

// SubmitResponse is returned by the submission endpoint.
type SubmitResponse struct {
	Success    bool   `json:"success"`
	SolutionID uint   `json:"solutionId"`
	Status     string `json:"status"`
}

// Metric is one graded criterion.
type Metric struct {
	Label      string `json:"label"`
	Percentage int    `json:"percentage"`
	Grade      string `json:"grade"`
}

// Evaluation is the structured verdict of a reviewed solution.
type Evaluation struct {
	Feedback  string   `json:"feedback"`
	Metrics   []Metric `json:"metrics"`
	IsCorrect bool     `json:"isCorrect"`
	Rating    int      `json:"rating"`
}

// Solution is the caller's latest solution for a task.
type Solution struct {
	ID          uint        `json:"id"`
	Content     string      `json:"content"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Evaluation  *Evaluation `json:"evaluation"`
	Attempts    int         `json:"attempts"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Settled reports whether polling can stop.
func (s Solution) Settled() bool {
	return s.Status == StatusReviewed || s.Status == StatusFailed
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("designhub api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("designhub api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the designhub API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
	logger  zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithToken sends the bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "designhub_client").Logger()
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitSolution applies the plan gate locally and then posts the solution.
func (c *Client) SubmitSolution(ctx context.Context, profile Profile, taskID uint, req SubmitRequest) (SubmitResponse, error) {
	if req.MentorCheck && !profile.IsPro() {
		return SubmitResponse{}, ErrUpgradeRequired
	}
	if length := utf8.RuneCountInString(strings.TrimSpace(req.Description)); profile.CharLimit > 0 && length > profile.CharLimit {
		return SubmitResponse{}, fmt.Errorf("%w: %d > %d", ErrCharLimit, length, profile.CharLimit)
	}
	if req.UserID == nil && profile.ID > 0 && c.token == "" {
		id := profile.ID
		req.UserID = &id
	}

	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, solutionsPath(taskID), nil, req, &out); err != nil {
		return SubmitResponse{}, err
	}
	return out, nil
}

// MySolution fetches the caller's latest solution. It returns nil when none exists.
func (c *Client) MySolution(ctx context.Context, taskID, userID uint) (*Solution, error) {
	query := url.Values{}
	if userID > 0 {
		query.Set("userId", strconv.FormatUint(uint64(userID), 10))
	}

	var out struct {
		Solution *Solution `json:"solution"`
	}
	if err := c.do(ctx, http.MethodGet, solutionsPath(taskID)+"/my", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Solution, nil
}

func solutionsPath(taskID uint) string {
	return fmt.Sprintf("/api/tasks/%d/solutions", taskID)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target interface{}) error {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
