package schedule_test

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"deskline/internal/domain"
	"deskline/internal/schedule"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func newProjector() schedule.Projector {
	p := schedule.NewProjector(schedule.DefaultRules(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Now = func() time.Time { return testNow }
	return p
}

func byID(items []schedule.Item) map[string]schedule.Item {
	out := make(map[string]schedule.Item, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out
}

func TestProjectTaskStatus(t *testing.T) {
	src := schedule.Sources{Tasks: []domain.Task{
		{ID: "t1", Title: "Send quote", Status: domain.TaskStatusCompleted, DueAt: at(-48 * time.Hour)},
		{ID: "t2", Title: "Call supplier", Status: domain.TaskStatusOpen, DueAt: at(-time.Hour), Priority: "High"},
		{ID: "t3", Title: "Prepare deck", Status: domain.TaskStatusOpen, DueAt: at(time.Hour)},
		{ID: "t4", Title: "Draft contract", Status: domain.TaskStatusInProgress},
		{ID: "t5", Title: "Install shelving", Type: "Job", Status: domain.TaskStatusOpen, Priority: "low"},
	}}
	items := byID(newProjector().Project(src))
	cases := []struct {
		id       string
		kind     schedule.Kind
		status   schedule.Status
		priority schedule.Priority
	}{
		{"task:t1", schedule.KindTask, schedule.StatusCompleted, schedule.PriorityMedium},
		{"task:t2", schedule.KindTask, schedule.StatusOverdue, schedule.PriorityHigh},
		{"task:t3", schedule.KindTask, schedule.StatusPending, schedule.PriorityMedium},
		{"task:t4", schedule.KindTask, schedule.StatusInProgress, schedule.PriorityMedium},
		{"task:t5", schedule.KindJob, schedule.StatusPending, schedule.PriorityLow},
	}
	for _, tc := range cases {
		it, ok := items[tc.id]
		if !ok {
			t.Fatalf("missing item %s in %v", tc.id, items)
		}
		if it.Kind != tc.kind || it.Status != tc.status || it.Priority != tc.priority {
			t.Fatalf("%s: got kind=%s status=%s priority=%s", tc.id, it.Kind, it.Status, it.Priority)
		}
	}
}

func TestProjectTicketSLA(t *testing.T) {
	src := schedule.Sources{Tickets: []domain.Ticket{
		{ID: "k1", Subject: "Printer jammed", Status: domain.TicketStatusOpen, SLADeadline: at(2 * time.Hour)},
		{ID: "k2", Subject: "Refund", Status: domain.TicketStatusResolved, SLADeadline: at(-time.Hour)},
		{ID: "k3", Subject: "Login broken", Status: domain.TicketStatusClosed},
		{ID: "k4", Subject: "Invoice wrong", Status: domain.TicketStatusInProgress, Priority: "High", CreatedAt: testNow.Add(-5 * time.Hour)},
	}}
	items := newProjector().Project(src)
	if len(items) != 2 {
		t.Fatalf("expected terminal tickets excluded, got %d items", len(items))
	}
	open := items[0]
	if open.ID != "ticket:k1" || open.Status != schedule.StatusPending {
		t.Fatalf("unexpected ticket %+v", open)
	}
	if open.SLALabel != "2h left" {
		t.Fatalf("expected SLA label 2h left, got %q", open.SLALabel)
	}
	// high priority SLA window is 4h from creation, which passed an hour ago
	derived := items[1]
	if derived.DueAt == nil || !derived.DueAt.Equal(testNow.Add(-time.Hour)) {
		t.Fatalf("expected derived SLA deadline, got %v", derived.DueAt)
	}
	if derived.Status != schedule.StatusOverdue || derived.SLALabel != "1h overdue" {
		t.Fatalf("expected overdue ticket, got %s %q", derived.Status, derived.SLALabel)
	}
}

func TestProjectCalendarTags(t *testing.T) {
	src := schedule.Sources{Events: []domain.CalendarEvent{
		{ID: "e1", Title: "Dentist", Tags: []string{"personal"}, StartAt: testNow.Add(3 * time.Hour)},
		{ID: "e2", Title: "Check in with Ana", Tags: []string{"Follow-up"}, StartAt: testNow.Add(-time.Hour)},
		{ID: "e3", Title: "Board meeting", Tags: []string{"Work"}, StartAt: testNow.Add(time.Hour)},
	}}
	items := byID(newProjector().Project(src))
	if len(items) != 2 {
		t.Fatalf("expected only tagged events, got %d", len(items))
	}
	if it := items["event:e1"]; it.Status != schedule.StatusPending {
		t.Fatalf("personal event status %s", it.Status)
	}
	if it := items["event:e2"]; it.Status != schedule.StatusOverdue {
		t.Fatalf("follow-up event status %s", it.Status)
	}
}

func TestProjectLeadCallbacks(t *testing.T) {
	src := schedule.Sources{Leads: []domain.Lead{
		{ID: "l1", Name: "Acme", Status: domain.LeadStatusQualified},
		{ID: "l2", Name: "Globex", Status: domain.LeadStatusQualified},
		{ID: "l3", Name: "Initech", Status: domain.LeadStatusContacted},
		{ID: "l4", Name: "Umbrella", Status: domain.LeadStatusNew},
	}}
	items := newProjector().Project(src)
	if len(items) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(items))
	}
	want := []schedule.Priority{schedule.PriorityHigh, schedule.PriorityHigh, schedule.PriorityMedium}
	for i, it := range items {
		if it.Kind != schedule.KindCallback {
			t.Fatalf("item %d kind %s", i, it.Kind)
		}
		if it.DueAt != nil {
			t.Fatalf("callback should have no due time")
		}
		if it.Priority != want[i] {
			t.Fatalf("item %d priority %s, want %s", i, it.Priority, want[i])
		}
		if !it.Source.Synthesized || it.Source.Kind != schedule.SourceLead {
			t.Fatalf("expected synthesized lead source, got %+v", it.Source)
		}
	}
}

func TestProjectInboundFollowUps(t *testing.T) {
	contacts := []domain.Contact{
		{ID: "c1", Name: "Ana"},
		{ID: "c2", Name: "Ben", Email: "ben@example.com"},
	}
	accounts := []domain.Account{{ID: "a1", Name: "Acme"}}
	msgs := []domain.Message{
		{ID: "m1", Direction: domain.MessageInbound, SenderContactID: "c1", ReceivedAt: testNow.Add(-1 * time.Hour)},
		{ID: "m2", Direction: domain.MessageInbound, SenderEmail: "BEN@example.com", ReceivedAt: testNow.Add(-2 * time.Hour)},
		{ID: "m3", Direction: domain.MessageInbound, SenderAccountID: "a1", ReceivedAt: testNow.Add(-3 * time.Hour)},
		{ID: "m4", Direction: domain.MessageInbound, SenderEmail: "nobody@example.com", ReceivedAt: testNow.Add(-4 * time.Hour)},
		{ID: "m5", Direction: domain.MessageInbound, SenderContactID: "missing", ReceivedAt: testNow.Add(-5 * time.Hour)},
		{ID: "m6", Direction: domain.MessageInbound, SenderContactID: "c1", Replied: true, ReceivedAt: testNow},
		{ID: "m7", Direction: domain.MessageOutbound, SenderContactID: "c1", ReceivedAt: testNow},
	}
	items := newProjector().Project(schedule.Sources{Messages: msgs, Contacts: contacts, Accounts: accounts})
	if len(items) != 3 {
		t.Fatalf("expected 3 follow-ups, got %d", len(items))
	}
	names := []string{"Ana", "Ben", "Acme"}
	for i, it := range items {
		if it.Kind != schedule.KindFollowUp {
			t.Fatalf("item %d kind %s", i, it.Kind)
		}
		if it.Linked == nil || it.Linked.DisplayName != names[i] {
			t.Fatalf("item %d linked %+v, want %s", i, it.Linked, names[i])
		}
		if !strings.Contains(it.Title, names[i]) {
			t.Fatalf("item %d title %q", i, it.Title)
		}
	}
}

func TestProjectInboundSampleIsBounded(t *testing.T) {
	var msgs []domain.Message
	for i := 0; i < 8; i++ {
		msgs = append(msgs, domain.Message{
			ID:              string(rune('a' + i)),
			Direction:       domain.MessageInbound,
			SenderContactID: "c1",
			ReceivedAt:      testNow.Add(time.Duration(-i) * time.Hour),
		})
	}
	p := newProjector()
	p.Rules.InboundSample = 3
	items := p.Project(schedule.Sources{Messages: msgs, Contacts: []domain.Contact{{ID: "c1", Name: "Ana"}}})
	if len(items) != 3 {
		t.Fatalf("expected sample of 3, got %d", len(items))
	}
	for i, want := range []string{"a", "b", "c"} {
		if items[i].Source.ID != want {
			t.Fatalf("expected most recent messages first, got %s at %d", items[i].Source.ID, i)
		}
	}
	// a 24h reply window from a message 2h old is still pending
	if items[2].Status != schedule.StatusPending || items[2].DueAt == nil {
		t.Fatalf("unexpected follow-up state %+v", items[2])
	}
}

func TestProjectDeals(t *testing.T) {
	src := schedule.Sources{Deals: []domain.Deal{
		{ID: "d1", Name: "Big renewal", Stage: "Negotiation", Value: 50000},
		{ID: "d2", Name: "Small add-on", Stage: "Proposal", Value: 10000},
		{ID: "d3", Name: "Won deal", Stage: domain.DealStageClosedWon, Value: 90000},
	}}
	items := newProjector().Project(src)
	if len(items) != 2 {
		t.Fatalf("expected closed deals excluded, got %d", len(items))
	}
	if items[0].Kind != schedule.KindMeeting || items[0].Priority != schedule.PriorityHigh {
		t.Fatalf("unexpected big deal item %+v", items[0])
	}
	if items[1].Priority != schedule.PriorityMedium {
		t.Fatalf("deal at threshold should be medium, got %s", items[1].Priority)
	}
	if items[0].Linked == nil || items[0].Linked.Kind != domain.EntityDeal {
		t.Fatalf("expected deal link, got %+v", items[0].Linked)
	}
}

func TestProjectSkipsMalformedRecords(t *testing.T) {
	var buf bytes.Buffer
	p := newProjector()
	p.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	src := schedule.Sources{
		Tasks:  []domain.Task{{ID: "t1", Title: "  "}, {ID: "t2", Title: "Valid"}},
		Events: []domain.CalendarEvent{{ID: "e1", Title: "No start", Tags: []string{"Personal"}}},
		Leads:  []domain.Lead{{ID: "l1", Status: domain.LeadStatusContacted}},
	}
	items := p.Project(src)
	if len(items) != 1 || items[0].ID != "task:t2" {
		t.Fatalf("expected only the valid task, got %+v", items)
	}
	if strings.Count(buf.String(), "skipping malformed record") != 3 {
		t.Fatalf("expected three warnings, got log:\n%s", buf.String())
	}
}

func TestProjectDropsUnresolvableLink(t *testing.T) {
	src := schedule.Sources{
		Tasks: []domain.Task{
			{ID: "t1", Title: "Linked", Related: &domain.EntityRef{Kind: domain.EntityAccount, ID: "a1"}},
			{ID: "t2", Title: "Dangling", Related: &domain.EntityRef{Kind: domain.EntityAccount, ID: "gone"}},
		},
		Accounts: []domain.Account{{ID: "a1", Name: "Acme"}},
	}
	items := newProjector().Project(src)
	if len(items) != 2 {
		t.Fatalf("expected both tasks, got %d", len(items))
	}
	if items[0].Linked == nil || items[0].Linked.DisplayName != "Acme" {
		t.Fatalf("expected resolved link, got %+v", items[0].Linked)
	}
	if items[1].Linked != nil {
		t.Fatalf("expected dangling link omitted, got %+v", items[1].Linked)
	}
}

func TestOverdueImpliesPastDeadline(t *testing.T) {
	items := newProjector().Project(mixedSources())
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.ID] {
			t.Fatalf("duplicate id %s", it.ID)
		}
		seen[it.ID] = true
		if it.Status == schedule.StatusOverdue {
			if it.DueAt == nil || !it.DueAt.Before(testNow) {
				t.Fatalf("%s overdue without past deadline", it.ID)
			}
		}
		if it.Status == schedule.StatusCompleted && !it.Kind.Completable() {
			t.Fatalf("%s completed but kind %s has no completion", it.ID, it.Kind)
		}
	}
}

func TestItemIDsCarrySourcePrefix(t *testing.T) {
	items := newProjector().Project(schedule.Sources{
		Tasks:    []domain.Task{{ID: "x1", Title: "Fix boiler", Type: "Job", Status: domain.TaskStatusOpen}},
		Tickets:  []domain.Ticket{{ID: "x1", Subject: "Broken login", Status: domain.TicketStatusOpen}},
		Events:   []domain.CalendarEvent{{ID: "x1", Title: "Ring back", Tags: []string{"Follow-up"}, StartAt: testNow.Add(time.Hour)}},
		Leads:    []domain.Lead{{ID: "x1", Name: "Initech", Status: domain.LeadStatusContacted}},
		Messages: []domain.Message{{ID: "x1", Direction: domain.MessageInbound, SenderContactID: "c1", ReceivedAt: testNow.Add(-time.Hour)}},
		Deals:    []domain.Deal{{ID: "x1", Name: "Upsell", Stage: "Proposal"}},
		Contacts: []domain.Contact{{ID: "c1", Name: "Ana"}},
	})
	want := map[string]schedule.Kind{
		"task:x1":    schedule.KindJob,
		"ticket:x1":  schedule.KindTicket,
		"event:x1":   schedule.KindFollowUp,
		"lead:x1":    schedule.KindCallback,
		"message:x1": schedule.KindFollowUp,
		"deal:x1":    schedule.KindMeeting,
	}
	got := byID(items)
	if len(items) != len(want) || len(got) != len(want) {
		t.Fatalf("expected %d distinct items, got %d", len(want), len(items))
	}
	for id, kind := range want {
		it, ok := got[id]
		if !ok || it.Kind != kind {
			t.Fatalf("item %s: got %+v want kind %s", id, it, kind)
		}
	}
}

func mixedSources() schedule.Sources {
	return schedule.Sources{
		Tasks: []domain.Task{
			{ID: "t1", Title: "Overdue low", Status: domain.TaskStatusOpen, Priority: "Low", DueAt: at(-24 * time.Hour), AssigneeID: "me"},
			{ID: "t2", Title: "Today high", Status: domain.TaskStatusOpen, Priority: "High", DueAt: at(2 * time.Hour)},
			{ID: "t3", Title: "Done", Status: domain.TaskStatusCompleted, DueAt: at(-2 * time.Hour), AssigneeID: "me"},
			{ID: "t4", Title: "Next week", Status: domain.TaskStatusOpen, DueAt: at(10 * 24 * time.Hour)},
			{ID: "t5", Title: "No deadline", Status: domain.TaskStatusOpen, AssigneeID: "me"},
		},
		Tickets: []domain.Ticket{
			{ID: "k1", Subject: "Printer jammed", Status: domain.TicketStatusOpen, Priority: "High", SLADeadline: at(2 * time.Hour), AccountID: "a1"},
		},
		Events: []domain.CalendarEvent{
			{ID: "e1", Title: "Gym", Tags: []string{"Personal"}, StartAt: testNow.Add(3 * 24 * time.Hour)},
		},
		Leads: []domain.Lead{
			{ID: "l1", Name: "Globex", Status: domain.LeadStatusQualified},
		},
		Deals: []domain.Deal{
			{ID: "d1", Name: "Renewal", Stage: "Proposal", Value: 500},
		},
		Accounts: []domain.Account{{ID: "a1", Name: "Acme Corp"}},
	}
}
