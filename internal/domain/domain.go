package domain

import "time"

// Source statuses as stored by the record editors.
const (
	TaskStatusOpen       = "Open"
	TaskStatusInProgress = "In Progress"
	TaskStatusCompleted  = "Completed"

	TicketStatusOpen       = "Open"
	TicketStatusInProgress = "In Progress"
	TicketStatusResolved   = "Resolved"
	TicketStatusClosed     = "Closed"

	LeadStatusNew       = "New"
	LeadStatusContacted = "Contacted"
	LeadStatusQualified = "Qualified"
	LeadStatusConverted = "Converted"
	LeadStatusLost      = "Lost"

	DealStageClosedWon  = "Closed Won"
	DealStageClosedLost = "Closed Lost"

	MessageInbound  = "inbound"
	MessageOutbound = "outbound"
)

// Reference kinds a record can point at.
const (
	EntityLead    = "lead"
	EntityDeal    = "deal"
	EntityContact = "contact"
	EntityAccount = "account"
)

// EntityRef is a weak pointer from one record into another collection.
type EntityRef struct {
	Kind string `json:"kind" enum:"lead,deal,contact,account"`
	ID   string `json:"id"`
}

type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry,omitempty"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Contact struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Task struct {
	ID          string     `json:"id"`
	Type        string     `json:"type,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Related     *EntityRef `json:"related,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type Ticket struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	AccountID   string     `json:"account_id,omitempty"`
	ContactID   string     `json:"contact_id,omitempty"`
	SLADeadline *time.Time `json:"sla_deadline,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type CalendarEvent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	OwnerID     string     `json:"owner_id,omitempty"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	Related     *EntityRef `json:"related,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Email     string    `json:"email,omitempty"`
	Status    string    `json:"status"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Deal struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	AccountID     string     `json:"account_id,omitempty"`
	Stage         string     `json:"stage"`
	Value         float64    `json:"value"`
	OwnerID       string     `json:"owner_id,omitempty"`
	NextMeetingAt *time.Time `json:"next_meeting_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Message is a communication log entry. Inbound messages without a reply
// surface on the schedule as follow-ups.
type Message struct {
	ID              string    `json:"id"`
	Direction       string    `json:"direction" enum:"inbound,outbound"`
	SenderContactID string    `json:"sender_contact_id,omitempty"`
	SenderAccountID string    `json:"sender_account_id,omitempty"`
	SenderEmail     string    `json:"sender_email,omitempty"`
	Subject         string    `json:"subject,omitempty"`
	Body            string    `json:"body,omitempty"`
	Replied         bool      `json:"replied"`
	ReceivedAt      time.Time `json:"received_at"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey authenticates an actor against the HTTP API. Only the hash of the
// key is stored.
type APIKey struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Name      string    `json:"name,omitempty"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
