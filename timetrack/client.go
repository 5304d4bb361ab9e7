// Package timetrack talks to the remote time-tracking service the sync
// handler reconciles monthly reports against.
package timetrack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/campusops/facultyhours/config"
	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/internal/httpclient"
)

const (
	entriesPath    = "/entities/TimeEntry"
	requestTimeout = 30 * time.Second
)

// Entry is one time entry record at the service.
type Entry struct {
	ID           string  `json:"id,omitempty"`
	FacultyEmail string  `json:"faculty_email"`
	Date         string  `json:"date"`  // YYYY-MM-DD
	Month        string  `json:"month"` // YYYY-MM
	ActivityType string  `json:"activity_type"`
	Hours        float64 `json:"hours"`
	Description  string  `json:"description"`
	CourseName   string  `json:"course_name"`
}

// API is the surface the sync handler needs. Satisfied by *Client and
// by test fakes.
type API interface {
	FetchEntries(ctx context.Context, month, activityType string) ([]Entry, error)
	BulkAdd(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, id string) error
}

// Client is the HTTP client for the time-tracking API. Outbound calls
// are rate limited so a large sync does not trip the service's quota.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewClient builds a client from configuration.
func NewClient(cfg config.TimeTrackingConfig, log *zap.SugaredLogger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("time_tracking.base_url is not configured")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("time_tracking.api_key is not configured")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = config.DefaultRequestsPerSecond
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpclient.New(requestTimeout, httpclient.Options{}),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}, nil
}

// FetchEntries returns the entries for a month, optionally filtered by
// activity type.
func (c *Client) FetchEntries(ctx context.Context, month, activityType string) ([]Entry, error) {
	q := url.Values{}
	if month != "" {
		q.Set("month", month)
	}
	if activityType != "" {
		q.Set("activity_type", activityType)
	}

	path := entriesPath
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var entries []Entry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, errors.Wrap(err, "fetching time entries")
	}
	return entries, nil
}

// BulkAdd creates entries in one request.
func (c *Client) BulkAdd(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, entriesPath+"/bulk", entries, nil); err != nil {
		return errors.Wrapf(err, "bulk adding %d time entries", len(entries))
	}
	return nil
}

// Delete removes one entry by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("entry id is empty")
	}
	path := entriesPath + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return errors.Wrapf(err, "deleting time entry %s", id)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("api_key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "time-tracking request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Newf("time-tracking service returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response")
		}
	}
	return nil
}
