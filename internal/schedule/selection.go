package schedule

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Selection is either collapsed (the zero value) or has exactly one
// expanded item.
type Selection struct {
	expanded string
}

func Collapsed() Selection { return Selection{} }

// Expanded restores a selection with id expanded, e.g. from a client that
// carries the state between requests.
func Expanded(id string) Selection { return Selection{expanded: id} }

// Select toggles id: selecting the expanded item collapses it, selecting
// any other item replaces the expansion.
func (s Selection) Select(id string) Selection {
	if id == "" || s.expanded == id {
		return Collapsed()
	}
	return Selection{expanded: id}
}

// Dismiss collapses on an interaction outside the expanded item.
func (s Selection) Dismiss() Selection { return Collapsed() }

func (s Selection) ExpandedID() (string, bool) { return s.expanded, s.expanded != "" }

func (s Selection) IsExpanded(id string) bool { return id != "" && s.expanded == id }

func (s Selection) String() string {
	if s.expanded == "" {
		return "collapsed"
	}
	return "expanded(" + s.expanded + ")"
}

// Action is an inline action offered by an expanded item.
type Action string

const (
	ActionComplete Action = "complete"
	ActionEdit     Action = "edit"
	ActionOpen     Action = "open"
	ActionNavigate Action = "navigate"
	ActionAddNote  Action = "addNote"
)

func ParseAction(s string) (Action, error) {
	for _, a := range []Action{ActionComplete, ActionEdit, ActionOpen, ActionNavigate, ActionAddNote} {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("invalid action %q", s)
}

// ActionsFor lists the actions available while it is expanded.
func ActionsFor(it Item) []Action {
	switch it.Kind {
	case KindTask, KindJob:
		return []Action{ActionComplete, ActionEdit, ActionOpen}
	case KindTicket:
		return []Action{ActionOpen}
	default:
		actions := []Action{ActionEdit}
		if it.Linked != nil {
			actions = append(actions, ActionNavigate, ActionAddNote)
		}
		return actions
	}
}

// TaskCompleter marks a source task completed. The change shows up on the
// next projection.
type TaskCompleter interface {
	CompleteTask(ctx context.Context, taskID string) error
}

// Navigator hands control to editors and record views outside the schedule.
type Navigator interface {
	OpenEditor(ctx context.Context, kind SourceKind, sourceID string) error
	NavigateTo(ctx context.Context, entityKind, entityID string) error
	AddNote(ctx context.Context, entity LinkedEntity) error
}

var ErrActionUnavailable = errors.New("action not available")

// Controller owns a Selection and dispatches inline actions.
type Controller struct {
	selection Selection
	Completer TaskCompleter
	Navigator Navigator
}

func NewController(completer TaskCompleter, nav Navigator) *Controller {
	return &Controller{Completer: completer, Navigator: nav}
}

func (c *Controller) Selection() Selection { return c.selection }

// Restore replaces the held selection, e.g. with the state a client sent back.
func (c *Controller) Restore(s Selection) { c.selection = s }

func (c *Controller) Select(id string) Selection {
	c.selection = c.selection.Select(id)
	return c.selection
}

func (c *Controller) Dismiss() Selection {
	c.selection = c.selection.Dismiss()
	return c.selection
}

// Invoke runs action a on it, which must be the expanded item. Completing
// leaves the selection untouched; edit, open and navigate collapse before
// leaving the list so that coming back does not reopen a stale expansion.
// A rejected action leaves the selection as it was.
func (c *Controller) Invoke(ctx context.Context, it Item, a Action) error {
	if !slices.Contains(ActionsFor(it), a) {
		return fmt.Errorf("%w: %s on %s item", ErrActionUnavailable, a, it.Kind)
	}
	if !c.selection.IsExpanded(it.ID) {
		return fmt.Errorf("%w: %s is not expanded", ErrActionUnavailable, it.ID)
	}
	if a == ActionComplete {
		if c.Completer == nil {
			return errors.New("no task completer configured")
		}
		return c.Completer.CompleteTask(ctx, it.Source.ID)
	}
	if c.Navigator == nil {
		return errors.New("no navigator configured")
	}
	switch a {
	case ActionAddNote:
		return c.Navigator.AddNote(ctx, *it.Linked)
	case ActionEdit:
		c.selection = Collapsed()
		return c.Navigator.OpenEditor(ctx, it.Source.Kind, it.Source.ID)
	case ActionOpen:
		c.selection = Collapsed()
		return c.Navigator.NavigateTo(ctx, string(it.Source.Kind), it.Source.ID)
	default:
		c.selection = Collapsed()
		return c.Navigator.NavigateTo(ctx, it.Linked.Kind, it.Linked.ID)
	}
}
