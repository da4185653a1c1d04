package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"deskline/internal/engine"
	"deskline/internal/schedule"
)

func registerSchedule(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-schedule",
		Method:      http.MethodGet,
		Path:        "/schedule",
		Summary:     "Filtered, sorted schedule with dashboard counts",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *ScheduleParams) (*struct {
		Body ScheduleResponse `json:"body"`
	}, error) {
		view, err := renderSchedule(ctx, e, input)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body ScheduleResponse `json:"body"`
		}{Body: scheduleResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-schedule-stats",
		Method:      http.MethodGet,
		Path:        "/schedule/stats",
		Summary:     "Dashboard counts over the unfiltered schedule",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body schedule.Stats `json:"body"`
	}, error) {
		view, err := e.Schedule(ctx, schedule.ViewState{})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body schedule.Stats `json:"body"`
		}{Body: view.Stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-schedule-item",
		Method:      http.MethodGet,
		Path:        "/schedule/items/{id}",
		Summary:     "Get one projected item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body schedule.Item `json:"body"`
	}, error) {
		it, err := e.Item(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body schedule.Item `json:"body"`
		}{Body: it}, nil
	})
}

func renderSchedule(ctx context.Context, e engine.Engine, input *ScheduleParams) (engine.View, error) {
	caller := ""
	if p, ok := principalFromContext(ctx); ok {
		caller = p.ActorID
	}
	state, err := input.viewState(caller)
	if err != nil {
		return engine.View{}, badRequest(err)
	}
	view, err := e.Schedule(ctx, state)
	if err != nil {
		return engine.View{}, handleError(err)
	}
	return view, nil
}

func registerSelection(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "select-item",
		Method:      http.MethodPost,
		Path:        "/schedule/select",
		Summary:     "Toggle or dismiss the expanded item",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SelectRequest `json:"body"`
	}) (*struct {
		Body SelectionResponse `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		sel := schedule.Expanded(input.Body.Expanded)
		if input.Body.Dismiss {
			sel = sel.Dismiss()
		} else {
			sel = sel.Select(input.Body.ItemID)
		}
		resp := SelectionResponse{Actions: []schedule.Action{}}
		if id, ok := sel.ExpandedID(); ok {
			it, err := e.Item(ctx, id)
			if err != nil {
				return nil, handleError(err)
			}
			resp.Expanded = id
			resp.Item = &it
			resp.Actions = schedule.ActionsFor(it)
		}
		return &struct {
			Body SelectionResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "invoke-action",
		Method:      http.MethodPost,
		Path:        "/schedule/actions",
		Summary:     "Invoke an inline action on an expanded item",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ActionRequest `json:"body"`
	}) (*struct {
		Body ActionResponse `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if input.Body.ItemID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "item_id is required", nil)
		}
		action, err := schedule.ParseAction(input.Body.Action)
		if err != nil {
			return nil, badRequest(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Dispatch(ctx, schedule.Expanded(input.Body.Expanded), input.Body.ItemID, action, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionResponse `json:"body"`
		}{Body: actionResponse(res)}, nil
	})
}
