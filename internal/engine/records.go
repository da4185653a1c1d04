package engine

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"deskline/internal/domain"
	"deskline/internal/events"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	Type        string
	Title       string
	Description string
	Priority    string
	AssigneeID  string
	DueAt       *time.Time
	Related     *domain.EntityRef
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if err := required("title", opts.Title); err != nil {
		return domain.Task{}, err
	}
	if opts.Related != nil {
		if err := e.checkRef(ctx, "related", opts.Related.Kind, opts.Related.ID); err != nil {
			return domain.Task{}, err
		}
	}
	now := e.now()
	t := domain.Task{
		ID:          newID(opts.ID),
		Type:        strings.TrimSpace(opts.Type),
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Status:      domain.TaskStatusOpen,
		Priority:    opts.Priority,
		AssigneeID:  opts.AssigneeID,
		DueAt:       opts.DueAt,
		Related:     opts.Related,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "task.created", "task", t.ID, opts.ActorID, events.Payload{"title": t.Title, "type": t.Type})
	})
	return t, err
}

// CompleteTask marks a task completed. Completing a completed task is a no-op.
func (e Engine) CompleteTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	return e.updateTask(ctx, id, actorID, "task.completed", func(t *domain.Task, now time.Time) bool {
		if t.Status == domain.TaskStatusCompleted {
			return false
		}
		t.Status = domain.TaskStatusCompleted
		t.CompletedAt = &now
		return true
	})
}

// ReopenTask moves a completed task back to open.
func (e Engine) ReopenTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	return e.updateTask(ctx, id, actorID, "task.reopened", func(t *domain.Task, _ time.Time) bool {
		if t.Status != domain.TaskStatusCompleted {
			return false
		}
		t.Status = domain.TaskStatusOpen
		t.CompletedAt = nil
		return true
	})
}

// StartTask marks an open task as in progress.
func (e Engine) StartTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	return e.updateTask(ctx, id, actorID, "task.started", func(t *domain.Task, _ time.Time) bool {
		if t.Status != domain.TaskStatusOpen {
			return false
		}
		t.Status = domain.TaskStatusInProgress
		return true
	})
}

// AssignTask sets the assignee; an empty assignee clears it.
func (e Engine) AssignTask(ctx context.Context, id, assignee, actorID string) (domain.Task, error) {
	return e.updateTask(ctx, id, actorID, "task.assigned", func(t *domain.Task, _ time.Time) bool {
		if t.AssigneeID == assignee {
			return false
		}
		t.AssigneeID = assignee
		return true
	})
}

func (e Engine) updateTask(ctx context.Context, id, actorID, evtType string, mutate func(*domain.Task, time.Time) bool) (domain.Task, error) {
	var t domain.Task
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = e.Repo.GetTask(ctx, tx, id)
		if err != nil {
			return err
		}
		now := e.now()
		if !mutate(&t, now) {
			return nil
		}
		t.UpdatedAt = now
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, evtType, "task", t.ID, actorID, events.Payload{"status": t.Status, "assignee_id": t.AssigneeID})
	})
	return t, err
}

type TicketCreateOptions struct {
	ID          string
	Subject     string
	Description string
	Priority    string
	AssigneeID  string
	AccountID   string
	ContactID   string
	SLADeadline *time.Time
	ActorID     string
}

var ticketStatuses = []string{domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed}

func (e Engine) CreateTicket(ctx context.Context, opts TicketCreateOptions) (domain.Ticket, error) {
	if err := required("subject", opts.Subject); err != nil {
		return domain.Ticket{}, err
	}
	if err := e.checkRef(ctx, "account_id", domain.EntityAccount, opts.AccountID); err != nil {
		return domain.Ticket{}, err
	}
	if err := e.checkRef(ctx, "contact_id", domain.EntityContact, opts.ContactID); err != nil {
		return domain.Ticket{}, err
	}
	t := domain.Ticket{
		ID:          newID(opts.ID),
		Subject:     strings.TrimSpace(opts.Subject),
		Description: opts.Description,
		Status:      domain.TicketStatusOpen,
		Priority:    opts.Priority,
		AssigneeID:  opts.AssigneeID,
		AccountID:   opts.AccountID,
		ContactID:   opts.ContactID,
		SLADeadline: opts.SLADeadline,
		CreatedAt:   e.now(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTicket(ctx, tx, t); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "ticket.created", "ticket", t.ID, opts.ActorID, events.Payload{"subject": t.Subject, "priority": t.Priority})
	})
	return t, err
}

func (e Engine) SetTicketStatus(ctx context.Context, id, status, actorID string) (domain.Ticket, error) {
	status, ok := canonical(ticketStatuses, status)
	if !ok {
		return domain.Ticket{}, invalid("status", "must be one of "+strings.Join(ticketStatuses, ", "))
	}
	var t domain.Ticket
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.SetTicketStatus(ctx, tx, id, status); err != nil {
			return err
		}
		var err error
		if t, err = e.Repo.GetTicket(ctx, tx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "ticket.status", "ticket", id, actorID, events.Payload{"status": status})
	})
	return t, err
}

type CalendarEventCreateOptions struct {
	ID          string
	Title       string
	Description string
	Tags        []string
	Priority    string
	OwnerID     string
	StartAt     time.Time
	EndAt       *time.Time
	Related     *domain.EntityRef
	ActorID     string
}

func (e Engine) CreateCalendarEvent(ctx context.Context, opts CalendarEventCreateOptions) (domain.CalendarEvent, error) {
	if err := required("title", opts.Title); err != nil {
		return domain.CalendarEvent{}, err
	}
	if opts.StartAt.IsZero() {
		return domain.CalendarEvent{}, invalid("start_at", "required")
	}
	if opts.EndAt != nil && opts.EndAt.Before(opts.StartAt) {
		return domain.CalendarEvent{}, invalid("end_at", "before start_at")
	}
	if opts.Related != nil {
		if err := e.checkRef(ctx, "related", opts.Related.Kind, opts.Related.ID); err != nil {
			return domain.CalendarEvent{}, err
		}
	}
	var tags []string
	for _, tag := range opts.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	ev := domain.CalendarEvent{
		ID:          newID(opts.ID),
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Tags:        tags,
		Priority:    opts.Priority,
		OwnerID:     opts.OwnerID,
		StartAt:     opts.StartAt,
		EndAt:       opts.EndAt,
		Related:     opts.Related,
		CreatedAt:   e.now(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertCalendarEvent(ctx, tx, ev); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "event.created", "event", ev.ID, opts.ActorID, events.Payload{"title": ev.Title, "tags": ev.Tags})
	})
	return ev, err
}

type LeadCreateOptions struct {
	ID      string
	Name    string
	Company string
	Email   string
	Status  string
	OwnerID string
	ActorID string
}

var leadStatuses = []string{domain.LeadStatusNew, domain.LeadStatusContacted, domain.LeadStatusQualified, domain.LeadStatusConverted, domain.LeadStatusLost}

func (e Engine) CreateLead(ctx context.Context, opts LeadCreateOptions) (domain.Lead, error) {
	if err := required("name", opts.Name); err != nil {
		return domain.Lead{}, err
	}
	status := domain.LeadStatusNew
	if opts.Status != "" {
		var ok bool
		if status, ok = canonical(leadStatuses, opts.Status); !ok {
			return domain.Lead{}, invalid("status", "must be one of "+strings.Join(leadStatuses, ", "))
		}
	}
	l := domain.Lead{
		ID:        newID(opts.ID),
		Name:      strings.TrimSpace(opts.Name),
		Company:   opts.Company,
		Email:     opts.Email,
		Status:    status,
		OwnerID:   opts.OwnerID,
		CreatedAt: e.now(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertLead(ctx, tx, l); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "lead.created", "lead", l.ID, opts.ActorID, events.Payload{"name": l.Name, "status": l.Status})
	})
	return l, err
}

func (e Engine) SetLeadStatus(ctx context.Context, id, status, actorID string) (domain.Lead, error) {
	status, ok := canonical(leadStatuses, status)
	if !ok {
		return domain.Lead{}, invalid("status", "must be one of "+strings.Join(leadStatuses, ", "))
	}
	var l domain.Lead
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.SetLeadStatus(ctx, tx, id, status); err != nil {
			return err
		}
		var err error
		if l, err = e.Repo.GetLead(ctx, tx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "lead.status", "lead", id, actorID, events.Payload{"status": status})
	})
	return l, err
}

type DealCreateOptions struct {
	ID            string
	Name          string
	AccountID     string
	Stage         string
	Value         float64
	OwnerID       string
	NextMeetingAt *time.Time
	ActorID       string
}

func (e Engine) CreateDeal(ctx context.Context, opts DealCreateOptions) (domain.Deal, error) {
	if err := required("name", opts.Name); err != nil {
		return domain.Deal{}, err
	}
	if err := required("stage", opts.Stage); err != nil {
		return domain.Deal{}, err
	}
	if opts.Value < 0 {
		return domain.Deal{}, invalid("value", "must be >= 0")
	}
	if err := e.checkRef(ctx, "account_id", domain.EntityAccount, opts.AccountID); err != nil {
		return domain.Deal{}, err
	}
	d := domain.Deal{
		ID:            newID(opts.ID),
		Name:          strings.TrimSpace(opts.Name),
		AccountID:     opts.AccountID,
		Stage:         strings.TrimSpace(opts.Stage),
		Value:         opts.Value,
		OwnerID:       opts.OwnerID,
		NextMeetingAt: opts.NextMeetingAt,
		CreatedAt:     e.now(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertDeal(ctx, tx, d); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "deal.created", "deal", d.ID, opts.ActorID, events.Payload{"name": d.Name, "stage": d.Stage, "value": d.Value})
	})
	return d, err
}

// SetDealStage moves a deal to stage. A non-nil meeting also reschedules
// the next meeting.
func (e Engine) SetDealStage(ctx context.Context, id, stage string, meeting *time.Time, actorID string) (domain.Deal, error) {
	if err := required("stage", stage); err != nil {
		return domain.Deal{}, err
	}
	stage = strings.TrimSpace(stage)
	var d domain.Deal
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.SetDealStage(ctx, tx, id, stage); err != nil {
			return err
		}
		if meeting != nil {
			if err := e.Repo.SetDealMeeting(ctx, tx, id, meeting); err != nil {
				return err
			}
		}
		var err error
		if d, err = e.Repo.GetDeal(ctx, tx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "deal.stage", "deal", id, actorID, events.Payload{"stage": stage})
	})
	return d, err
}

type MessageRecordOptions struct {
	ID              string
	Direction       string
	SenderContactID string
	SenderAccountID string
	SenderEmail     string
	Subject         string
	Body            string
	ReceivedAt      *time.Time
	ActorID         string
}

func (e Engine) RecordMessage(ctx context.Context, opts MessageRecordOptions) (domain.Message, error) {
	dir := strings.ToLower(strings.TrimSpace(opts.Direction))
	if dir == "" {
		dir = domain.MessageInbound
	}
	if dir != domain.MessageInbound && dir != domain.MessageOutbound {
		return domain.Message{}, invalid("direction", "must be inbound or outbound")
	}
	if opts.SenderContactID == "" && opts.SenderAccountID == "" && opts.SenderEmail == "" && dir == domain.MessageInbound {
		return domain.Message{}, invalid("sender", "one of sender_contact_id, sender_account_id or sender_email is required")
	}
	received := e.now()
	if opts.ReceivedAt != nil {
		received = *opts.ReceivedAt
	}
	m := domain.Message{
		ID:              newID(opts.ID),
		Direction:       dir,
		SenderContactID: opts.SenderContactID,
		SenderAccountID: opts.SenderAccountID,
		SenderEmail:     strings.TrimSpace(opts.SenderEmail),
		Subject:         opts.Subject,
		Body:            opts.Body,
		ReceivedAt:      received,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertMessage(ctx, tx, m); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "message.recorded", "message", m.ID, opts.ActorID, events.Payload{"direction": m.Direction, "subject": m.Subject})
	})
	return m, err
}

// MarkMessageReplied clears a message's follow-up.
func (e Engine) MarkMessageReplied(ctx context.Context, id, actorID string) (domain.Message, error) {
	var m domain.Message
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.MarkMessageReplied(ctx, tx, id); err != nil {
			return err
		}
		var err error
		if m, err = e.Repo.GetMessage(ctx, tx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "message.replied", "message", id, actorID, nil)
	})
	return m, err
}

type ContactCreateOptions struct {
	ID        string
	AccountID string
	Name      string
	Email     string
	Phone     string
	ActorID   string
}

func (e Engine) CreateContact(ctx context.Context, opts ContactCreateOptions) (domain.Contact, error) {
	if err := required("name", opts.Name); err != nil {
		return domain.Contact{}, err
	}
	if err := e.checkRef(ctx, "account_id", domain.EntityAccount, opts.AccountID); err != nil {
		return domain.Contact{}, err
	}
	c := domain.Contact{
		ID:        newID(opts.ID),
		AccountID: opts.AccountID,
		Name:      strings.TrimSpace(opts.Name),
		Email:     strings.TrimSpace(opts.Email),
		Phone:     opts.Phone,
		CreatedAt: e.now(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertContact(ctx, tx, c); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "contact.created", "contact", c.ID, opts.ActorID, events.Payload{"name": c.Name})
	})
	return c, err
}

type AccountCreateOptions struct {
	ID       string
	Name     string
	Industry string
	OwnerID  string
	ActorID  string
}

func (e Engine) CreateAccount(ctx context.Context, opts AccountCreateOptions) (domain.Account, error) {
	if err := required("name", opts.Name); err != nil {
		return domain.Account{}, err
	}
	a := domain.Account{
		ID:        newID(opts.ID),
		Name:      strings.TrimSpace(opts.Name),
		Industry:  opts.Industry,
		OwnerID:   opts.OwnerID,
		CreatedAt: e.now(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAccount(ctx, tx, a); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, "account.created", "account", a.ID, opts.ActorID, events.Payload{"name": a.Name})
	})
	return a, err
}

// canonical returns the member of set equal to v ignoring case.
func canonical(set []string, v string) (string, bool) {
	v = strings.TrimSpace(v)
	i := slices.IndexFunc(set, func(s string) bool { return strings.EqualFold(s, v) })
	if i < 0 {
		return "", false
	}
	return set[i], true
}
