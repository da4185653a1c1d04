package desklinesdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"deskline/internal/config"
	"deskline/internal/db"
	"deskline/internal/engine"
	"deskline/internal/migrate"
	"deskline/internal/server"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(conn, config.Default("sam"), logger)
	e.Now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	handler, err := server.New(server.Config{
		Engine: e,
		Auth:   server.AuthConfig{AllowLegacyActorHeader: true},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	c := New("http://" + ln.Addr().String())
	c.ActorID = "sam"
	return c
}

func TestClientScheduleRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	due := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	task, err := c.CreateTask(ctx, NewTask{ID: "t1", Title: "Call supplier", Type: "Job", Priority: "high", AssigneeID: "sam", DueAt: &due})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "Open" {
		t.Fatalf("unexpected task %+v", task)
	}

	view, err := c.Schedule(ctx, ScheduleQuery{Quick: "assignedToMe"})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].ID != "task:t1" || view.Items[0].Status != "overdue" {
		t.Fatalf("unexpected items %+v", view.Items)
	}

	sel, err := c.Select(ctx, "", "task:t1")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Expanded != "task:t1" || len(sel.Actions) == 0 {
		t.Fatalf("unexpected selection %+v", sel)
	}
	res, err := c.Invoke(ctx, sel.Expanded, "task:t1", "complete")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Item == nil || res.Item.Status != "completed" {
		t.Fatalf("expected completed item, got %+v", res)
	}
	sel, err = c.Dismiss(ctx, sel.Expanded)
	if err != nil || sel.Expanded != "" {
		t.Fatalf("dismiss: %+v %v", sel, err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 1 || stats.Overdue != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	page, err := c.EventsPage(ctx, 1, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Type != "task.completed" || page.NextCursor == 0 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Schedule(context.Background(), ScheduleQuery{Window: "fortnight"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 api error, got %v", err)
	}
	_, err = c.CompleteTask(context.Background(), "missing")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 api error, got %v", err)
	}
}
