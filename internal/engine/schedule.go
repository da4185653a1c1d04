package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deskline/internal/repo"
	"deskline/internal/schedule"
)

// View is one rendering of the schedule: the filtered, sorted items plus
// the dashboard counts over the whole projection.
type View struct {
	Items       []schedule.Item
	Stats       schedule.Stats
	State       schedule.ViewState
	Projected   int
	GeneratedAt time.Time
}

func (e Engine) projector() (schedule.Projector, error) {
	rules := schedule.DefaultRules()
	if e.Config != nil {
		r, err := e.Config.ScheduleRules()
		if err != nil {
			return schedule.Projector{}, fmt.Errorf("schedule rules: %w", err)
		}
		rules = r
	}
	p := schedule.NewProjector(rules, e.logger())
	p.Now = e.now
	return p, nil
}

// Project loads every source collection and projects it at the engine clock.
func (e Engine) Project(ctx context.Context) ([]schedule.Item, error) {
	p, err := e.projector()
	if err != nil {
		return nil, err
	}
	src, err := e.Repo.LoadSources(ctx)
	if err != nil {
		return nil, err
	}
	return p.Project(src), nil
}

// Schedule projects the sources and applies state. An empty Me defaults to
// the configured workspace owner.
func (e Engine) Schedule(ctx context.Context, state schedule.ViewState) (View, error) {
	now := e.now()
	items, err := e.Project(ctx)
	if err != nil {
		return View{}, err
	}
	if state.Me == "" && e.Config != nil {
		state.Me = e.Config.Owner()
	}
	visible := schedule.Apply(items, state, now)
	e.logger().Debug("schedule rendered",
		"projected", len(items), "visible", len(visible),
		"window", state.Window, "kind", state.Kind, "filter", state.Filter.String())
	return View{
		Items:       visible,
		Stats:       schedule.Count(items, now),
		State:       state,
		Projected:   len(items),
		GeneratedAt: now,
	}, nil
}

// Item returns the projected item with id.
func (e Engine) Item(ctx context.Context, id string) (schedule.Item, error) {
	items, err := e.Project(ctx)
	if err != nil {
		return schedule.Item{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return schedule.Item{}, fmt.Errorf("schedule item %s: %w", id, repo.ErrNotFound)
}

// Completer adapts the engine to schedule.TaskCompleter.
type Completer struct {
	Engine  Engine
	ActorID string
}

func (c Completer) CompleteTask(ctx context.Context, taskID string) error {
	_, err := c.Engine.CompleteTask(ctx, taskID, c.ActorID)
	return err
}

// Target is where an edit, open, navigate or add-note action sends the
// user. The engine has no editor of its own, so callers render or follow it.
type Target struct {
	Kind       string `json:"kind" enum:"editor,record,note"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Label      string `json:"label,omitempty"`
}

// Redirect is a schedule.Navigator that records the requested target.
type Redirect struct {
	Target *Target
}

func (r *Redirect) OpenEditor(_ context.Context, kind schedule.SourceKind, sourceID string) error {
	r.Target = &Target{Kind: "editor", EntityKind: string(kind), EntityID: sourceID}
	return nil
}

func (r *Redirect) NavigateTo(_ context.Context, entityKind, entityID string) error {
	r.Target = &Target{Kind: "record", EntityKind: entityKind, EntityID: entityID}
	return nil
}

func (r *Redirect) AddNote(_ context.Context, entity schedule.LinkedEntity) error {
	r.Target = &Target{Kind: "note", EntityKind: entity.Kind, EntityID: entity.ID, Label: entity.DisplayName}
	return nil
}

// ActionResult is the outcome of Dispatch.
type ActionResult struct {
	Selection schedule.Selection
	Target    *Target
	// Item is the action's item re-projected after the action ran. It is
	// nil when the item left the projection, e.g. a completed task hidden
	// by a terminal state.
	Item *schedule.Item
}

// Dispatch runs action a on the projected item itemID with sel as the
// selection in force. Completion mutates the task; every other action only
// yields a Target.
func (e Engine) Dispatch(ctx context.Context, sel schedule.Selection, itemID string, a schedule.Action, actorID string) (ActionResult, error) {
	it, err := e.Item(ctx, itemID)
	if err != nil {
		return ActionResult{}, err
	}
	nav := &Redirect{}
	ctrl := schedule.NewController(Completer{Engine: e, ActorID: actorID}, nav)
	ctrl.Restore(sel)
	if err := ctrl.Invoke(ctx, it, a); err != nil {
		if errors.Is(err, schedule.ErrActionUnavailable) {
			return ActionResult{}, invalid("action", err.Error())
		}
		return ActionResult{}, err
	}
	res := ActionResult{Selection: ctrl.Selection(), Target: nav.Target}
	if after, err := e.Item(ctx, itemID); err == nil {
		res.Item = &after
	} else if !errors.Is(err, repo.ErrNotFound) {
		return ActionResult{}, err
	}
	return res, nil
}
