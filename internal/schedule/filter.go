package schedule

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Window limits items by due date.
type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowAll   Window = "all"
)

func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WindowAll, nil
	case WindowToday, WindowWeek, WindowAll:
		return w, nil
	default:
		return "", fmt.Errorf("invalid window %q (want today, week or all)", s)
	}
}

// KindGroup is a semantic grouping of item kinds for the kind filter.
type KindGroup string

const (
	GroupAll      KindGroup = "all"
	GroupTasks    KindGroup = "tasks"
	GroupCalls    KindGroup = "calls"
	GroupMeetings KindGroup = "meetings"
	GroupTickets  KindGroup = "tickets"
	GroupPersonal KindGroup = "personal"
)

var groupKinds = map[KindGroup][]Kind{
	GroupTasks:    {KindTask, KindJob},
	GroupCalls:    {KindCallback, KindFollowUp},
	GroupMeetings: {KindMeeting},
	GroupTickets:  {KindTicket},
	GroupPersonal: {KindPersonal},
}

func ParseKindGroup(s string) (KindGroup, error) {
	g := KindGroup(strings.ToLower(strings.TrimSpace(s)))
	if g == "" || g == GroupAll {
		return GroupAll, nil
	}
	if _, ok := groupKinds[g]; !ok {
		return "", fmt.Errorf("invalid kind group %q", s)
	}
	return g, nil
}

// Contains reports whether the group admits items of kind k.
func (g KindGroup) Contains(k Kind) bool {
	if g == "" || g == GroupAll {
		return true
	}
	return slices.Contains(groupKinds[g], k)
}

type QuickFilter string

const (
	QuickAll          QuickFilter = "all"
	QuickOverdue      QuickFilter = "overdue"
	QuickAssignedToMe QuickFilter = "assignedToMe"
	QuickHighPriority QuickFilter = "highPriority"
)

func ParseQuickFilter(s string) (QuickFilter, error) {
	switch q := strings.TrimSpace(s); {
	case q == "" || strings.EqualFold(q, string(QuickAll)):
		return QuickAll, nil
	case strings.EqualFold(q, string(QuickOverdue)):
		return QuickOverdue, nil
	case strings.EqualFold(q, string(QuickAssignedToMe)), strings.EqualFold(q, "mine"):
		return QuickAssignedToMe, nil
	case strings.EqualFold(q, string(QuickHighPriority)), strings.EqualFold(q, "high"):
		return QuickHighPriority, nil
	default:
		return "", fmt.Errorf("invalid quick filter %q", s)
	}
}

// StatFilter is a dashboard-tile filter. It overrides any quick filter.
type StatFilter string

const (
	StatPending       StatFilter = "pending"
	StatOverdue       StatFilter = "overdue"
	StatHighPriority  StatFilter = "highPriority"
	StatTasksOnly     StatFilter = "tasksOnly"
	StatTicketsOnly   StatFilter = "ticketsOnly"
	StatCompletedOnly StatFilter = "completedOnly"
)

var statFilters = []StatFilter{StatPending, StatOverdue, StatHighPriority, StatTasksOnly, StatTicketsOnly, StatCompletedOnly}

func ParseStatFilter(s string) (StatFilter, error) {
	s = strings.TrimSpace(s)
	for _, st := range statFilters {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid stat filter %q", s)
}

// ActiveFilter is either no filter, one quick filter, or one stat filter.
// The fields are only set through the constructors, so a quick filter and
// a stat filter can never both be active.
type ActiveFilter struct {
	quick QuickFilter
	stat  StatFilter
}

func NoFilter() ActiveFilter { return ActiveFilter{} }

func Quick(q QuickFilter) ActiveFilter {
	if q == QuickAll {
		return ActiveFilter{}
	}
	return ActiveFilter{quick: q}
}

func Stat(s StatFilter) ActiveFilter { return ActiveFilter{stat: s} }

func (f ActiveFilter) Quick() (QuickFilter, bool) { return f.quick, f.quick != "" }
func (f ActiveFilter) Stat() (StatFilter, bool)   { return f.stat, f.stat != "" }

func (f ActiveFilter) String() string {
	switch {
	case f.quick != "":
		return "quick:" + string(f.quick)
	case f.stat != "":
		return "stat:" + string(f.stat)
	default:
		return "none"
	}
}

// ViewState is the full set of user-controlled view inputs.
type ViewState struct {
	Search        string
	Window        Window
	Kind          KindGroup
	Filter        ActiveFilter
	ShowCompleted bool
	// Me is the assignee matched by the assignedToMe quick filter.
	Me string
}

// WithQuick activates a quick filter, clearing any stat filter.
func (s ViewState) WithQuick(q QuickFilter) ViewState {
	s.Filter = Quick(q)
	return s
}

// WithStat activates a stat filter, clearing any quick filter.
func (s ViewState) WithStat(st StatFilter) ViewState {
	s.Filter = Stat(st)
	return s
}

// ToggleStat behaves like clicking a dashboard tile: it activates st, or
// clears it when st is already the active stat filter.
func (s ViewState) ToggleStat(st StatFilter) ViewState {
	if cur, ok := s.Filter.Stat(); ok && cur == st {
		s.Filter = NoFilter()
		return s
	}
	return s.WithStat(st)
}

func (s ViewState) ClearFilter() ViewState {
	s.Filter = NoFilter()
	return s
}

// Apply runs the filter stages in order and sorts what remains. It never
// mutates items; an empty result is a valid outcome.
func Apply(items []Item, state ViewState, now time.Time) []Item {
	stages := []func(Item) bool{
		searchStage(state.Search),
		windowStage(state.Window, now),
		kindStage(state.Kind),
		filterStage(state.Filter, state.Me),
		completionStage(state.Filter, state.ShowCompleted),
	}
	out := make([]Item, 0, len(items))
next:
	for _, it := range items {
		for _, keep := range stages {
			if !keep(it) {
				continue next
			}
		}
		out = append(out, it)
	}
	Sort(out)
	return out
}

// Sort orders items overdue-first, then by priority descending. The sort
// is stable, so equal items keep projection order.
func Sort(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		ao, bo := a.Status == StatusOverdue, b.Status == StatusOverdue
		if ao != bo {
			if ao {
				return -1
			}
			return 1
		}
		return b.Priority.rank() - a.Priority.rank()
	})
}

func searchStage(query string) func(Item) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return func(Item) bool { return true }
	}
	return func(it Item) bool {
		if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Description), q) {
			return true
		}
		return it.Linked != nil && strings.Contains(strings.ToLower(it.Linked.DisplayName), q)
	}
}

func windowStage(w Window, now time.Time) func(Item) bool {
	if w == "" || w == WindowAll {
		return func(Item) bool { return true }
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := today.AddDate(0, 0, 1)
	if w == WindowWeek {
		end = today.AddDate(0, 0, 8)
	}
	return func(it Item) bool {
		if it.DueAt == nil || it.Status == StatusOverdue {
			return true
		}
		due := it.DueAt.In(now.Location())
		return !due.Before(today) && due.Before(end)
	}
}

func kindStage(g KindGroup) func(Item) bool {
	return func(it Item) bool { return g.Contains(it.Kind) }
}

func filterStage(f ActiveFilter, me string) func(Item) bool {
	if st, ok := f.Stat(); ok {
		return func(it Item) bool { return matchStat(st, it) }
	}
	if q, ok := f.Quick(); ok {
		return func(it Item) bool { return matchQuick(q, it, me) }
	}
	return func(Item) bool { return true }
}

func matchQuick(q QuickFilter, it Item, me string) bool {
	switch q {
	case QuickOverdue:
		return it.Status == StatusOverdue
	case QuickAssignedToMe:
		return me != "" && it.Assignee == me
	case QuickHighPriority:
		return it.Priority == PriorityHigh
	default:
		return true
	}
}

func matchStat(st StatFilter, it Item) bool {
	switch st {
	case StatPending:
		return it.Status.open()
	case StatOverdue:
		return it.Status == StatusOverdue
	case StatHighPriority:
		return it.Priority == PriorityHigh
	case StatTasksOnly:
		return GroupTasks.Contains(it.Kind)
	case StatTicketsOnly:
		return it.Kind == KindTicket
	case StatCompletedOnly:
		return it.Status == StatusCompleted
	default:
		return true
	}
}

func completionStage(f ActiveFilter, show bool) func(Item) bool {
	if st, ok := f.Stat(); ok && (st == StatCompletedOnly || st == StatPending) {
		return func(Item) bool { return true }
	}
	return func(it Item) bool { return show || it.Status != StatusCompleted }
}

// Stats holds the count behind each dashboard tile: how many items the
// matching stat filter would show over the unwindowed list.
type Stats struct {
	Pending      int `json:"pending"`
	Overdue      int `json:"overdue"`
	HighPriority int `json:"high_priority"`
	Tasks        int `json:"tasks"`
	Tickets      int `json:"tickets"`
	Completed    int `json:"completed"`
}

func Count(items []Item, now time.Time) Stats {
	count := func(st StatFilter) int {
		return len(Apply(items, ViewState{Filter: Stat(st)}, now))
	}
	return Stats{
		Pending:      count(StatPending),
		Overdue:      count(StatOverdue),
		HighPriority: count(StatHighPriority),
		Tasks:        count(StatTasksOnly),
		Tickets:      count(StatTicketsOnly),
		Completed:    count(StatCompletedOnly),
	}
}
