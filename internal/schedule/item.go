// Package schedule merges the independent work collections (tasks,
// tickets, calendar events, leads, deals and inbound messages) into one
// prioritized list of Items, filters and sorts that list for a view, and
// tracks which Item is expanded.
//
// Items are never stored. They are recomputed from the source collections
// on every read, so status is always derived against the current clock.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the closed set of item kinds.
type Kind string

const (
	KindTask     Kind = "task"
	KindCallback Kind = "callback"
	KindFollowUp Kind = "followup"
	KindMeeting  Kind = "meeting"
	KindTicket   Kind = "ticket"
	KindJob      Kind = "job"
	KindPersonal Kind = "personal"
)

var kinds = []Kind{KindTask, KindCallback, KindFollowUp, KindMeeting, KindTicket, KindJob, KindPersonal}

// Kinds returns every item kind in display order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Completable reports whether items of this kind carry a completed state.
func (k Kind) Completable() bool {
	return k == KindTask || k == KindJob
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank orders priorities for sorting; higher sorts first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// ParsePriority maps a free-form source priority onto the three buckets.
// Unknown or empty values fall back to medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "urgent", "critical", "p1":
		return PriorityHigh
	case "low", "p3", "p4":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "inProgress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// open reports whether the status counts as outstanding, not-yet-late work.
func (s Status) open() bool {
	return s == StatusPending || s == StatusInProgress
}

// SourceKind names the collection an item was projected from.
type SourceKind string

const (
	SourceTask          SourceKind = "task"
	SourceTicket        SourceKind = "ticket"
	SourceCalendarEvent SourceKind = "event"
	SourceLead          SourceKind = "lead"
	SourceDeal          SourceKind = "deal"
	SourceMessage       SourceKind = "message"
)

// SourceRef identifies where an item came from. Direct refs point at the
// record the item mirrors; synthesized refs carry the derivation key of the
// business condition that produced the item, so ids stay stable across
// projections without a backing row.
type SourceRef struct {
	Kind        SourceKind `json:"kind"`
	ID          string     `json:"id"`
	Synthesized bool       `json:"synthesized,omitempty"`
}

// Direct references a record that the item mirrors one-to-one.
func Direct(kind SourceKind, id string) SourceRef {
	return SourceRef{Kind: kind, ID: id}
}

// Synthesized references the record whose state produced the item.
func Synthesized(kind SourceKind, derivationKey string) SourceRef {
	return SourceRef{Kind: kind, ID: derivationKey, Synthesized: true}
}

func (r SourceRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// LinkedEntity is a display/navigation pointer into a reference collection.
type LinkedEntity struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Item is the unified projection of one unit of scheduled work.
type Item struct {
	ID          string        `json:"id"`
	Kind        Kind          `json:"kind"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	DueAt       *time.Time    `json:"due_at,omitempty"`
	Priority    Priority      `json:"priority"`
	Status      Status        `json:"status"`
	Assignee    string        `json:"assignee,omitempty"`
	Linked      *LinkedEntity `json:"linked,omitempty"`
	Source      SourceRef     `json:"source"`
	SLALabel    string        `json:"sla_label,omitempty"`
}

// newItem keys the item by its source ref. Each source record projects to at
// most one item, so the ref alone is unique across the list.
func newItem(kind Kind, ref SourceRef) Item {
	return Item{
		ID:       ref.String(),
		Kind:     kind,
		Source:   ref,
		Priority: PriorityMedium,
		Status:   StatusPending,
	}
}

// deriveStatus applies the shared overdue rule: an uncompleted item with a
// deadline in the past is overdue.
func deriveStatus(completed bool, due *time.Time, now time.Time, open Status) Status {
	if completed {
		return StatusCompleted
	}
	if due != nil && due.Before(now) {
		return StatusOverdue
	}
	return open
}
