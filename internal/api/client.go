package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/amount.report/internal/db"
	"github.com/banshee-data/amount.report/internal/httputil"
)

// Client talks to a running `bands serve`.
type Client struct {
	BaseURL string
	HTTP    httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL with a generous
// timeout, since large runs take a while.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Intervals submits a run.
func (c *Client) Intervals(ctx context.Context, req IntervalsRequest) (*IntervalsResponse, error) {
	var resp IntervalsResponse
	if err := httputil.DoJSON(ctx, c.HTTP, http.MethodPost, c.BaseURL+"/api/intervals", req, &resp); err != nil {
		return nil, fmt.Errorf("intervals request failed: %w", err)
	}
	return &resp, nil
}

// Run fetches an archived run.
func (c *Client) Run(ctx context.Context, id string) (*db.IntervalRun, error) {
	var run db.IntervalRun
	if err := httputil.DoJSON(ctx, c.HTTP, http.MethodGet, c.BaseURL+"/api/runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Runs lists archived runs, newest first.
func (c *Client) Runs(ctx context.Context, source string, limit int) ([]db.IntervalRun, error) {
	q := url.Values{}
	if source != "" {
		q.Set("source", source)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := c.BaseURL + "/api/runs"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var runs []db.IntervalRun
	if err := httputil.DoJSON(ctx, c.HTTP, http.MethodGet, u, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
