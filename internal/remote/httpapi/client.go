// Package httpapi implements the remote habit service contract over its
// JSON HTTP API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/avilov/habitsync/internal/errs"
	"github.com/avilov/habitsync/internal/model"
	"github.com/avilov/habitsync/internal/remote"
)

// Client talks to the remote habit service. The bearer token is an opaque
// string injected by the surrounding application; session management lives
// there, not here.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client

	// retries on idempotent reads only; writes go through once and any
	// failure propagates to the caller.
	backoff func() retry.Backoff
}

var _ remote.Service = (*Client)(nil)

// New constructs a client for the service rooted at baseURL.
// httpClient may be nil, in which case a 15s-timeout client is used.
func New(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		base:  u,
		token: token,
		http:  httpClient,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewFibonacci(200*time.Millisecond))
		},
	}, nil
}

// wireHabit is the JSON shape of a habit on the wire.
type wireHabit struct {
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	ReminderTime string   `json:"reminder_time"`
	ReminderDays []string `json:"reminder_days"`
	Streaks      []string `json:"streaks"`
	LastModified string   `json:"last_modified,omitempty"`
	Privacy      string   `json:"privacy"`
}

// Reminder refs are device state and never cross the wire.

func toWire(h model.Habit) wireHabit {
	w := wireHabit{
		ID:           h.ID,
		Title:        h.Title,
		Description:  h.Description,
		StartDate:    string(h.StartDate),
		EndDate:      string(h.EndDate),
		ReminderTime: h.ReminderTime,
		ReminderDays: h.ReminderDays,
		Streaks:      h.Streaks,
		Privacy:      string(h.Privacy),
	}
	if !h.LastModified.IsZero() {
		w.LastModified = h.LastModified.UTC().Format(time.RFC3339Nano)
	}
	return w
}

func fromWire(w wireHabit) (model.Habit, error) {
	h := model.Habit{
		ID:           w.ID,
		Title:        w.Title,
		Description:  w.Description,
		StartDate:    model.Date(w.StartDate),
		EndDate:      model.Date(w.EndDate),
		ReminderTime: w.ReminderTime,
		ReminderDays: w.ReminderDays,
		Streaks:      w.Streaks,
		Privacy:      model.Privacy(w.Privacy),
	}
	if w.LastModified != "" {
		t, err := time.Parse(time.RFC3339Nano, w.LastModified)
		if err != nil {
			return model.Habit{}, fmt.Errorf("habit %s: parse last_modified: %w", w.ID, err)
		}
		h.LastModified = t
	}
	return h, nil
}

// Fetch returns a habit by ID, or errs.ErrNotFound on 404.
func (c *Client) Fetch(ctx context.Context, id string) (*model.Habit, error) {
	var w wireHabit
	err := c.getJSON(ctx, "/api/habits/"+url.PathEscape(id), &w)
	if err != nil {
		return nil, err
	}
	h, err := fromWire(w)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// List returns all habits known to the remote side.
func (c *Client) List(ctx context.Context) ([]model.Habit, error) {
	var ws []wireHabit
	if err := c.getJSON(ctx, "/api/habits", &ws); err != nil {
		return nil, err
	}
	out := make([]model.Habit, 0, len(ws))
	for _, w := range ws {
		h, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Create stores a new habit; the response carries the remote-minted ID.
func (c *Client) Create(ctx context.Context, h model.Habit) (*model.Habit, error) {
	in := toWire(h)
	in.ID = ""
	var w wireHabit
	if err := c.doJSON(ctx, http.MethodPost, "/api/habits", in, &w); err != nil {
		return nil, err
	}
	created, err := fromWire(w)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the habit stored under id.
func (c *Client) Update(ctx context.Context, id string, h model.Habit) (*model.Habit, error) {
	var w wireHabit
	path := "/api/habits/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodPut, path, toWire(h), &w); err != nil {
		return nil, err
	}
	updated, err := fromWire(w)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the habit stored under id.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/api/habits/" + url.PathEscape(id)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// RemovedSince reports which candidate IDs were deleted remotely.
func (c *Client) RemovedSince(ctx context.Context, ids []string) (map[string]time.Time, error) {
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	var resp struct {
		Removed map[string]string `json:"removed"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/habits/removed", req, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(resp.Removed))
	for id, raw := range resp.Removed {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("removed %s: parse timestamp: %w", id, err)
		}
		out[id] = t
	}
	return out, nil
}

// getJSON performs a GET with bounded retries. Only reads retry: the remote
// contract treats them as idempotent, writes are not replayed.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := c.doJSON(ctx, http.MethodGet, path, nil, out)
		if err == nil || errors.Is(err, errs.ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", errs.ErrRemoteUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errs.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s",
			errs.ErrRemoteUnavailable, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
