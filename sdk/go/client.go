package desklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Deskline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no credentials are set, for
	// servers that allow the legacy header.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Linked points at the record an item belongs to.
type Linked struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Item is one schedule entry.
type Item struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Assignee    string     `json:"assignee,omitempty"`
	Linked      *Linked    `json:"linked,omitempty"`
	SLALabel    string     `json:"sla_label,omitempty"`
	Source      struct {
		Kind        string `json:"kind"`
		ID          string `json:"id"`
		Synthesized bool   `json:"synthesized,omitempty"`
	} `json:"source"`
}

// Stats are the dashboard tile counts.
type Stats struct {
	Pending      int `json:"pending"`
	Overdue      int `json:"overdue"`
	HighPriority int `json:"high_priority"`
	Tasks        int `json:"tasks"`
	Tickets      int `json:"tickets"`
	Completed    int `json:"completed"`
}

// Schedule is a rendered view.
type Schedule struct {
	Items         []Item    `json:"items"`
	Stats         Stats     `json:"stats"`
	Window        string    `json:"window"`
	Kind          string    `json:"kind"`
	Filter        string    `json:"filter"`
	ShowCompleted bool      `json:"show_completed"`
	Projected     int       `json:"projected"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// ScheduleQuery selects a view. Set at most one of Quick and Stat.
type ScheduleQuery struct {
	Search        string
	Window        string
	Kind          string
	Quick         string
	Stat          string
	ShowCompleted bool
	Me            string
}

func (q ScheduleQuery) values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("search", q.Search)
	set("window", q.Window)
	set("kind", q.Kind)
	set("quick", q.Quick)
	set("stat", q.Stat)
	set("me", q.Me)
	if q.ShowCompleted {
		v.Set("show_completed", "true")
	}
	return v
}

// Selection is the server's answer to a select call. Expanded is empty when
// the list is collapsed.
type Selection struct {
	Expanded string   `json:"expanded,omitempty"`
	Item     *Item    `json:"item,omitempty"`
	Actions  []string `json:"actions"`
}

// Target is where a navigation action points.
type Target struct {
	Kind       string `json:"kind"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Label      string `json:"label,omitempty"`
}

type ActionResult struct {
	Expanded string  `json:"expanded,omitempty"`
	Target   *Target `json:"target,omitempty"`
	Item     *Item   `json:"item,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID          string     `json:"id"`
	Type        string     `json:"type,omitempty"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask is the create-task payload.
type NewTask struct {
	ID         string     `json:"id,omitempty"`
	Type       string     `json:"type,omitempty"`
	Title      string     `json:"title"`
	Priority   string     `json:"priority,omitempty"`
	AssigneeID string     `json:"assignee_id,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// PaginatedEvents wraps log responses with a cursor.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor int64   `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Schedule fetches the filtered, sorted schedule.
func (c *Client) Schedule(ctx context.Context, q ScheduleQuery) (Schedule, error) {
	endpoint := "v0/schedule"
	if v := q.values(); len(v) > 0 {
		endpoint += "?" + v.Encode()
	}
	var resp Schedule
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "v0/schedule/stats", nil, &resp)
	return resp, err
}

// Select toggles itemID against the expanded selection the caller holds.
func (c *Client) Select(ctx context.Context, expanded, itemID string) (Selection, error) {
	body := map[string]any{"expanded": expanded, "item_id": itemID}
	var resp Selection
	err := c.do(ctx, http.MethodPost, "v0/schedule/select", body, &resp)
	return resp, err
}

// Dismiss collapses the selection.
func (c *Client) Dismiss(ctx context.Context, expanded string) (Selection, error) {
	body := map[string]any{"expanded": expanded, "dismiss": true}
	var resp Selection
	err := c.do(ctx, http.MethodPost, "v0/schedule/select", body, &resp)
	return resp, err
}

// Invoke runs an inline action on itemID.
func (c *Client) Invoke(ctx context.Context, expanded, itemID, action string) (ActionResult, error) {
	body := map[string]any{"expanded": expanded, "item_id": itemID, "action": action}
	var resp ActionResult
	err := c.do(ctx, http.MethodPost, "v0/schedule/actions", body, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", t, &resp)
	return resp, err
}

func (c *Client) CompleteTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/tasks/%s/complete", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// EventsPage returns a page of the activity log; cursor 0 starts at the
// newest event.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor int64) (PaginatedEvents, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if cursor > 0 {
		v.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	endpoint := "v0/log"
	if len(v) > 0 {
		endpoint += "?" + v.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
