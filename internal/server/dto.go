package server

import (
	"fmt"
	"time"

	"deskline/internal/domain"
	"deskline/internal/engine"
	"deskline/internal/schedule"
)

// ScheduleParams are the view inputs shared by the schedule endpoints.
type ScheduleParams struct {
	Search        string `query:"search" doc:"Case-insensitive match on title, description or linked entity"`
	Window        string `query:"window" doc:"today, week or all"`
	Kind          string `query:"kind" doc:"all, tasks, calls, meetings, tickets or personal"`
	Quick         string `query:"quick" doc:"overdue, assignedToMe or highPriority"`
	Stat          string `query:"stat" doc:"pending, overdue, highPriority, tasksOnly, ticketsOnly or completedOnly"`
	ShowCompleted bool   `query:"show_completed"`
	Me            string `query:"me" doc:"Assignee for assignedToMe; defaults to the caller"`
}

// viewState validates the params. A quick and a stat filter together are
// rejected since only one filter can be active.
func (p ScheduleParams) viewState(caller string) (schedule.ViewState, error) {
	var state schedule.ViewState
	var err error
	if state.Window, err = schedule.ParseWindow(p.Window); err != nil {
		return state, err
	}
	if state.Kind, err = schedule.ParseKindGroup(p.Kind); err != nil {
		return state, err
	}
	if p.Quick != "" && p.Stat != "" {
		return state, fmt.Errorf("invalid filter: quick and stat are mutually exclusive")
	}
	if p.Quick != "" {
		q, err := schedule.ParseQuickFilter(p.Quick)
		if err != nil {
			return state, err
		}
		state = state.WithQuick(q)
	}
	if p.Stat != "" {
		st, err := schedule.ParseStatFilter(p.Stat)
		if err != nil {
			return state, err
		}
		state = state.WithStat(st)
	}
	state.Search = p.Search
	state.ShowCompleted = p.ShowCompleted
	state.Me = p.Me
	if state.Me == "" {
		state.Me = caller
	}
	return state, nil
}

type ScheduleResponse struct {
	Items         []schedule.Item `json:"items"`
	Stats         schedule.Stats  `json:"stats"`
	Window        string          `json:"window"`
	Kind          string          `json:"kind"`
	Filter        string          `json:"filter" example:"stat:overdue"`
	ShowCompleted bool            `json:"show_completed"`
	Projected     int             `json:"projected"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

func scheduleResponse(v engine.View) ScheduleResponse {
	items := v.Items
	if items == nil {
		items = []schedule.Item{}
	}
	return ScheduleResponse{
		Items:         items,
		Stats:         v.Stats,
		Window:        string(v.State.Window),
		Kind:          string(v.State.Kind),
		Filter:        v.State.Filter.String(),
		ShowCompleted: v.State.ShowCompleted,
		Projected:     v.Projected,
		GeneratedAt:   v.GeneratedAt,
	}
}

// SelectRequest toggles ItemID against the Expanded selection the client
// holds. Dismiss collapses regardless of ItemID.
type SelectRequest struct {
	Expanded string `json:"expanded,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
	Dismiss  bool   `json:"dismiss,omitempty"`
}

type SelectionResponse struct {
	Expanded string            `json:"expanded,omitempty"`
	Item     *schedule.Item    `json:"item,omitempty"`
	Actions  []schedule.Action `json:"actions"`
}

type ActionRequest struct {
	ItemID   string `json:"item_id"`
	Action   string `json:"action" enum:"complete,edit,open,navigate,addNote"`
	Expanded string `json:"expanded,omitempty"`
}

type ActionResponse struct {
	Expanded string         `json:"expanded,omitempty"`
	Target   *engine.Target `json:"target,omitempty"`
	Item     *schedule.Item `json:"item,omitempty"`
}

func actionResponse(res engine.ActionResult) ActionResponse {
	expanded, _ := res.Selection.ExpandedID()
	return ActionResponse{Expanded: expanded, Target: res.Target, Item: res.Item}
}

type CreateTaskRequest struct {
	ID          string            `json:"id,omitempty"`
	Type        string            `json:"type,omitempty" example:"Job"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Priority    string            `json:"priority,omitempty" example:"high"`
	AssigneeID  string            `json:"assignee_id,omitempty"`
	DueAt       *time.Time        `json:"due_at,omitempty"`
	Related     *domain.EntityRef `json:"related,omitempty"`
}

type AssignTaskRequest struct {
	AssigneeID string `json:"assignee_id"`
}

type CreateTicketRequest struct {
	ID          string     `json:"id,omitempty"`
	Subject     string     `json:"subject"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	AccountID   string     `json:"account_id,omitempty"`
	ContactID   string     `json:"contact_id,omitempty"`
	SLADeadline *time.Time `json:"sla_deadline,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type CreateCalendarEventRequest struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Priority    string            `json:"priority,omitempty"`
	OwnerID     string            `json:"owner_id,omitempty"`
	StartAt     time.Time         `json:"start_at"`
	EndAt       *time.Time        `json:"end_at,omitempty"`
	Related     *domain.EntityRef `json:"related,omitempty"`
}

type CreateLeadRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Status  string `json:"status,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
}

type CreateDealRequest struct {
	ID            string     `json:"id,omitempty"`
	Name          string     `json:"name"`
	AccountID     string     `json:"account_id,omitempty"`
	Stage         string     `json:"stage,omitempty"`
	Value         float64    `json:"value,omitempty"`
	OwnerID       string     `json:"owner_id,omitempty"`
	NextMeetingAt *time.Time `json:"next_meeting_at,omitempty"`
}

type DealStageRequest struct {
	Stage         string     `json:"stage"`
	NextMeetingAt *time.Time `json:"next_meeting_at,omitempty"`
}

type RecordMessageRequest struct {
	ID              string     `json:"id,omitempty"`
	Direction       string     `json:"direction,omitempty" enum:"inbound,outbound"`
	SenderContactID string     `json:"sender_contact_id,omitempty"`
	SenderAccountID string     `json:"sender_account_id,omitempty"`
	SenderEmail     string     `json:"sender_email,omitempty"`
	Subject         string     `json:"subject,omitempty"`
	Body            string     `json:"body,omitempty"`
	ReceivedAt      *time.Time `json:"received_at,omitempty"`
}

type CreateContactRequest struct {
	ID        string `json:"id,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type CreateAccountRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
	OwnerID  string `json:"owner_id,omitempty"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source" enum:"jwt,api_key,legacy_header"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor int64          `json:"next_cursor,omitempty"`
}
