package schedule_test

import (
	"reflect"
	"testing"
	"time"

	"deskline/internal/domain"
	"deskline/internal/schedule"
)

func ids(items []schedule.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func contains(items []schedule.Item, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func TestOverdueTaskShowsInTodayFirst(t *testing.T) {
	items := newProjector().Project(mixedSources())
	got := schedule.Apply(items, schedule.ViewState{Window: schedule.WindowToday}, testNow)
	if len(got) == 0 || got[0].ID != "task:t1" {
		t.Fatalf("expected the low priority overdue task first, got %v", ids(got))
	}
	if got[0].Status != schedule.StatusOverdue {
		t.Fatalf("expected overdue status, got %s", got[0].Status)
	}
}

func TestWindowKeepsItemsWithoutDueDate(t *testing.T) {
	items := newProjector().Project(mixedSources())
	for _, w := range []schedule.Window{schedule.WindowToday, schedule.WindowWeek} {
		got := schedule.Apply(items, schedule.ViewState{Window: w}, testNow)
		for _, id := range []string{"task:t5", "lead:l1", "deal:d1"} {
			if !contains(got, id) {
				t.Fatalf("window %s dropped undated item %s: %v", w, id, ids(got))
			}
		}
	}
}

func TestWindowBounds(t *testing.T) {
	items := newProjector().Project(mixedSources())
	today := schedule.Apply(items, schedule.ViewState{Window: schedule.WindowToday}, testNow)
	if contains(today, "event:e1") {
		t.Fatalf("event in three days should not be in today: %v", ids(today))
	}
	week := schedule.Apply(items, schedule.ViewState{Window: schedule.WindowWeek}, testNow)
	if !contains(week, "event:e1") {
		t.Fatalf("event in three days should be in week: %v", ids(week))
	}
	if contains(week, "task:t4") {
		t.Fatalf("task in ten days should not be in week: %v", ids(week))
	}
	all := schedule.Apply(items, schedule.ViewState{}, testNow)
	if !contains(all, "task:t4") {
		t.Fatalf("empty window should show everything: %v", ids(all))
	}
}

func TestSearchMatchesLinkedName(t *testing.T) {
	items := newProjector().Project(mixedSources())
	got := schedule.Apply(items, schedule.ViewState{Search: "ACME"}, testNow)
	if len(got) != 1 || got[0].ID != "ticket:k1" {
		t.Fatalf("expected the ticket linked to Acme Corp, got %v", ids(got))
	}
	got = schedule.Apply(items, schedule.ViewState{Search: "deadline"}, testNow)
	if len(got) != 1 || got[0].ID != "task:t5" {
		t.Fatalf("expected title match, got %v", ids(got))
	}
}

func TestKindGroups(t *testing.T) {
	items := newProjector().Project(mixedSources())
	cases := map[schedule.KindGroup]int{
		schedule.GroupAll:      8,
		schedule.GroupTasks:    4,
		schedule.GroupCalls:    1,
		schedule.GroupMeetings: 1,
		schedule.GroupTickets:  1,
		schedule.GroupPersonal: 1,
	}
	for g, want := range cases {
		got := schedule.Apply(items, schedule.ViewState{Kind: g}, testNow)
		if len(got) != want {
			t.Fatalf("group %s: expected %d items, got %v", g, want, ids(got))
		}
	}
}

func TestQuickFilters(t *testing.T) {
	items := newProjector().Project(mixedSources())
	mine := schedule.Apply(items, schedule.ViewState{Me: "me"}.WithQuick(schedule.QuickAssignedToMe), testNow)
	if !reflect.DeepEqual(ids(mine), []string{"task:t1", "task:t5"}) {
		t.Fatalf("assigned to me: %v", ids(mine))
	}
	high := schedule.Apply(items, schedule.ViewState{}.WithQuick(schedule.QuickHighPriority), testNow)
	want := []string{"task:t2", "ticket:k1", "lead:l1"}
	if !reflect.DeepEqual(ids(high), want) {
		t.Fatalf("high priority: got %v want %v", ids(high), want)
	}
}

func TestOverdueQuickFilterHidesCompletedEvenWhenShown(t *testing.T) {
	items := newProjector().Project(mixedSources())
	state := schedule.ViewState{ShowCompleted: true}.WithQuick(schedule.QuickOverdue)
	got := schedule.Apply(items, state, testNow)
	for _, it := range got {
		if it.Status == schedule.StatusCompleted {
			t.Fatalf("overdue filter returned completed item %s", it.ID)
		}
	}
	if !reflect.DeepEqual(ids(got), []string{"task:t1"}) {
		t.Fatalf("unexpected overdue list %v", ids(got))
	}
}

func TestCompletionVisibility(t *testing.T) {
	items := newProjector().Project(mixedSources())
	if contains(schedule.Apply(items, schedule.ViewState{}, testNow), "task:t3") {
		t.Fatalf("completed items are hidden by default")
	}
	if !contains(schedule.Apply(items, schedule.ViewState{ShowCompleted: true}, testNow), "task:t3") {
		t.Fatalf("show completed should reveal completed items")
	}
	done := schedule.Apply(items, schedule.ViewState{}.WithStat(schedule.StatCompletedOnly), testNow)
	if !reflect.DeepEqual(ids(done), []string{"task:t3"}) {
		t.Fatalf("completedOnly ignores the toggle, got %v", ids(done))
	}
}

func TestStatFilterClearsQuickFilter(t *testing.T) {
	s := schedule.ViewState{}.WithQuick(schedule.QuickOverdue).WithStat(schedule.StatHighPriority)
	if _, ok := s.Filter.Quick(); ok {
		t.Fatalf("quick filter survived stat activation: %s", s.Filter)
	}
	if st, ok := s.Filter.Stat(); !ok || st != schedule.StatHighPriority {
		t.Fatalf("expected stat filter, got %s", s.Filter)
	}
	s = s.WithQuick(schedule.QuickAssignedToMe)
	if _, ok := s.Filter.Stat(); ok {
		t.Fatalf("stat filter survived quick activation: %s", s.Filter)
	}
	s = s.ToggleStat(schedule.StatPending).ToggleStat(schedule.StatPending)
	if s.Filter != schedule.NoFilter() {
		t.Fatalf("toggling the active tile should clear it, got %s", s.Filter)
	}
	if schedule.Quick(schedule.QuickAll) != schedule.NoFilter() {
		t.Fatalf("quick filter all is no filter")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	items := newProjector().Project(mixedSources())
	states := []schedule.ViewState{
		{},
		{Window: schedule.WindowToday},
		{Window: schedule.WindowWeek, Kind: schedule.GroupTasks, ShowCompleted: true},
		schedule.ViewState{Search: "a"}.WithStat(schedule.StatPending),
		schedule.ViewState{Me: "me"}.WithQuick(schedule.QuickAssignedToMe),
	}
	for _, s := range states {
		once := schedule.Apply(items, s, testNow)
		twice := schedule.Apply(once, s, testNow)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("apply not idempotent for %+v:\n%v\n%v", s, ids(once), ids(twice))
		}
	}
}

func TestSortIsStable(t *testing.T) {
	var tasks []domain.Task
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		tasks = append(tasks, domain.Task{ID: id, Title: "Task " + id, Status: domain.TaskStatusOpen})
	}
	tasks[2].Priority = "High"
	tasks[4].DueAt = at(-time.Hour)
	items := newProjector().Project(schedule.Sources{Tasks: tasks})
	want := []string{"task:e", "task:c", "task:a", "task:b", "task:d", "task:f"}
	for i := 0; i < 5; i++ {
		schedule.Sort(items)
		if !reflect.DeepEqual(ids(items), want) {
			t.Fatalf("sort pass %d: got %v want %v", i, ids(items), want)
		}
	}
}

func TestEmptyResultIsNotNil(t *testing.T) {
	items := newProjector().Project(mixedSources())
	got := schedule.Apply(items, schedule.ViewState{Search: "no such thing"}, testNow)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty, non-nil list, got %#v", got)
	}
}

func TestCount(t *testing.T) {
	items := newProjector().Project(mixedSources())
	got := schedule.Count(items, testNow)
	want := schedule.Stats{Pending: 7, Overdue: 1, HighPriority: 3, Tasks: 4, Tickets: 1, Completed: 1}
	if got != want {
		t.Fatalf("stats: got %+v want %+v", got, want)
	}
}

func TestParseFilters(t *testing.T) {
	if w, err := schedule.ParseWindow(""); err != nil || w != schedule.WindowAll {
		t.Fatalf("empty window: %v %v", w, err)
	}
	if _, err := schedule.ParseWindow("month"); err == nil {
		t.Fatalf("expected error for unknown window")
	}
	if q, err := schedule.ParseQuickFilter("mine"); err != nil || q != schedule.QuickAssignedToMe {
		t.Fatalf("mine alias: %v %v", q, err)
	}
	if st, err := schedule.ParseStatFilter("TasksOnly"); err != nil || st != schedule.StatTasksOnly {
		t.Fatalf("stat parse: %v %v", st, err)
	}
	if _, err := schedule.ParseKindGroup("emails"); err == nil {
		t.Fatalf("expected error for unknown kind group")
	}
}
