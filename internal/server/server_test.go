package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"deskline/internal/config"
	"deskline/internal/db"
	"deskline/internal/domain"
	"deskline/internal/engine"
	"deskline/internal/migrate"
	"deskline/internal/schedule"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(conn, config.Default("me"), logger)
	e.Now = func() time.Time { return fixedNow }
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth, Logger: logger})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

var asMe = map[string]string{"X-Actor-Id": "me"}

func legacyAuth() AuthConfig { return AuthConfig{AllowLegacyActorHeader: true} }

func ts(d time.Duration) string { return fixedNow.Add(d).Format(time.RFC3339) }

func seedHTTP(t *testing.T, srv *testServer) {
	t.Helper()
	client := srv.Client()
	requests := []struct {
		path string
		body map[string]any
	}{
		{"/v0/accounts", map[string]any{"id": "a1", "name": "Acme Corp"}},
		{"/v0/tasks", map[string]any{"id": "t1", "title": "Send quote", "priority": "low", "assignee_id": "me", "due_at": ts(-24 * time.Hour)}},
		{"/v0/tasks", map[string]any{"id": "t2", "title": "Prepare demo", "priority": "high", "due_at": ts(3 * time.Hour),
			"related": map[string]any{"kind": "account", "id": "a1"}}},
		{"/v0/leads", map[string]any{"id": "l1", "name": "Globex", "status": "Qualified"}},
		{"/v0/tickets", map[string]any{"id": "k1", "subject": "Printer jammed", "account_id": "a1", "sla_deadline": ts(2 * time.Hour)}},
	}
	for _, r := range requests {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+r.path, r.body, asMe)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("POST %s status %d: %s", r.path, res.StatusCode, string(data))
		}
	}
}

func getSchedule(t *testing.T, srv *testServer, query string) ScheduleResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/schedule"+query, nil, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("schedule%s status %d: %s", query, res.StatusCode, string(data))
	}
	var out ScheduleResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal schedule: %v", err)
	}
	return out
}

func ids(items []schedule.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestScheduleEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, legacyAuth())
	defer cleanup()
	seedHTTP(t, srv)

	view := getSchedule(t, srv, "")
	want := []string{"task:t1", "task:t2", "lead:l1", "ticket:k1"}
	got := ids(view.Items)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %v want %v", i, got, want)
		}
	}
	if view.Stats.Overdue != 1 || view.Stats.HighPriority != 2 || view.Stats.Tasks != 2 || view.Stats.Tickets != 1 {
		t.Fatalf("unexpected stats %+v", view.Stats)
	}
	if view.Items[3].SLALabel != "2h left" {
		t.Fatalf("expected sla label on ticket, got %q", view.Items[3].SLALabel)
	}

	mine := getSchedule(t, srv, "?quick=assignedToMe")
	if got := ids(mine.Items); len(got) != 1 || got[0] != "task:t1" {
		t.Fatalf("assigned to caller: %v", got)
	}
	if mine.Filter != "quick:assignedToMe" {
		t.Fatalf("filter echo %q", mine.Filter)
	}

	calls := getSchedule(t, srv, "?kind=calls&search=globex")
	if got := ids(calls.Items); len(got) != 1 || got[0] != "lead:l1" {
		t.Fatalf("calls: %v", got)
	}

	overdue := getSchedule(t, srv, "?stat=overdue&window=today")
	if got := ids(overdue.Items); len(got) != 1 || got[0] != "task:t1" {
		t.Fatalf("overdue: %v", got)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/schedule/stats", nil, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, string(data))
	}
	var stats schedule.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats != view.Stats {
		t.Fatalf("stats endpoint %+v differs from schedule %+v", stats, view.Stats)
	}
}

func TestScheduleRejectsBadParams(t *testing.T) {
	srv, cleanup := newTestServer(t, legacyAuth())
	defer cleanup()
	for _, q := range []string{"?window=month", "?kind=emails", "?quick=soon", "?stat=late", "?quick=overdue&stat=pending"} {
		res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/schedule"+q, nil, asMe)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d %s", q, res.StatusCode, string(data))
		}
		var env struct {
			Error apiErrorBody `json:"error"`
		}
		if err := json.Unmarshal(data, &env); err != nil || env.Error.Code != "bad_request" {
			t.Fatalf("%s: expected error envelope, got %s", q, string(data))
		}
	}
}

func TestSelectAndActions(t *testing.T) {
	srv, cleanup := newTestServer(t, legacyAuth())
	defer cleanup()
	seedHTTP(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedule/select", map[string]any{"item_id": "task:t1"}, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("select status %d: %s", res.StatusCode, string(data))
	}
	var sel SelectionResponse
	if err := json.Unmarshal(data, &sel); err != nil {
		t.Fatal(err)
	}
	if sel.Expanded != "task:t1" || len(sel.Actions) != 3 || sel.Actions[0] != schedule.ActionComplete {
		t.Fatalf("unexpected selection %+v", sel)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedule/select", map[string]any{"expanded": "task:t1", "item_id": "task:t1"}, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle status %d: %s", res.StatusCode, string(data))
	}
	sel = SelectionResponse{}
	_ = json.Unmarshal(data, &sel)
	if sel.Expanded != "" || len(sel.Actions) != 0 {
		t.Fatalf("expected collapse on reselect, got %+v", sel)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedule/actions", map[string]any{
		"item_id": "task:t1", "action": "complete", "expanded": "task:t1",
	}, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}
	var act ActionResponse
	if err := json.Unmarshal(data, &act); err != nil {
		t.Fatal(err)
	}
	if act.Expanded != "task:t1" || act.Item == nil || act.Item.Status != schedule.StatusCompleted {
		t.Fatalf("unexpected completion result %+v", act)
	}
	task, err := srv.Engine.Repo.GetTask(context.Background(), nil, "t1")
	if err != nil || task.Status != domain.TaskStatusCompleted {
		t.Fatalf("task not completed: %+v %v", task, err)
	}
	if got := ids(getSchedule(t, srv, "").Items); len(got) != 3 {
		t.Fatalf("completed task should be hidden, got %v", got)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedule/actions", map[string]any{
		"item_id": "ticket:k1", "action": "open", "expanded": "ticket:k1",
	}, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("open status %d: %s", res.StatusCode, string(data))
	}
	act = ActionResponse{}
	_ = json.Unmarshal(data, &act)
	if act.Expanded != "" || act.Target == nil || act.Target.Kind != "record" || act.Target.EntityID != "k1" {
		t.Fatalf("expected collapse with record target, got %+v", act)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedule/actions", map[string]any{
		"item_id": "ticket:k1", "action": "complete",
	}, asMe)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unavailable action, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedule/select", map[string]any{"item_id": "task:nope"}, asMe)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d %s", res.StatusCode, string(data))
	}
}

func TestRecordEditorsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, legacyAuth())
	defer cleanup()
	seedHTTP(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"id": "t1", "title": "dup"}, asMe)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict on duplicate id, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": " "}, asMe)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank title, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tickets/k1/status", map[string]any{"status": "Resolved"}, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ticket status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/leads/l1/status", map[string]any{"status": "Converted"}, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("lead status %d: %s", res.StatusCode, string(data))
	}
	if got := ids(getSchedule(t, srv, "").Items); len(got) != 2 {
		t.Fatalf("expected only tasks left, got %v", got)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/log?limit=2", nil, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("log status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.NextCursor == 0 || page.Items[0].Type != "lead.status" {
		t.Fatalf("unexpected log page %+v", page)
	}
	if page.Items[0].ActorID != "me" {
		t.Fatalf("expected actor from header, got %q", page.Items[0].ActorID)
	}
}

func TestAuthentication(t *testing.T) {
	const secret = "test-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should not require auth, got %d", res.StatusCode)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, asMe)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("legacy header must be ignored when disabled, got %d", res.StatusCode)
	}

	token, err := SignToken(secret, "alice", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("jwt status %d: %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	_ = json.Unmarshal(data, &who)
	if who.ActorID != "alice" || who.Source != "jwt" {
		t.Fatalf("unexpected principal %+v", who)
	}

	forged, _ := SignToken("other-secret", "alice", time.Hour, time.Now())
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + forged})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", res.StatusCode)
	}

	_, key, err := srv.Engine.CreateAPIKey(context.Background(), "bob", "ci", "admin")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key status %d: %s", res.StatusCode, string(data))
	}
	who = WhoAmIResponse{}
	_ = json.Unmarshal(data, &who)
	if who.ActorID != "bob" || who.Source != "api_key" {
		t.Fatalf("unexpected principal %+v", who)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": key + "x"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", res.StatusCode)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t, legacyAuth())
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, asMe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	var doc struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	for _, p := range []string{"/v0/schedule", "/v0/schedule/select", "/v0/schedule/actions", "/v0/tasks/{id}/complete"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("missing path %s", p)
		}
	}
}
