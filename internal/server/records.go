package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"deskline/internal/domain"
	"deskline/internal/engine"
	"deskline/internal/repo"
)

type bodyResponse[T any] struct {
	Body T `json:"body"`
}

func respond[T any](v T, err error) (*bodyResponse[T], error) {
	if err != nil {
		return nil, handleError(err)
	}
	return &bodyResponse[T]{Body: v}, nil
}

type idPath struct {
	ID string `path:"id"`
}

var createErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusConflict,
	http.StatusInternalServerError,
}

var mutateErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*bodyResponse[domain.Task], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		return respond(e.CreateTask(ctx, engine.TaskCreateOptions{
			ID:          b.ID,
			Type:        b.Type,
			Title:       b.Title,
			Description: b.Description,
			Priority:    b.Priority,
			AssigneeID:  b.AssigneeID,
			DueAt:       b.DueAt,
			Related:     b.Related,
			ActorID:     actorID,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status"`
		AssigneeID string `query:"assignee_id"`
		Type       string `query:"type"`
		Limit      int    `query:"limit" default:"50"`
	}) (*bodyResponse[[]domain.Task], error) {
		return respond(e.Repo.ListTasks(ctx, repo.TaskFilters{
			Status:     input.Status,
			AssigneeID: input.AssigneeID,
			Type:       input.Type,
			Limit:      normalizeLimit(input.Limit),
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*bodyResponse[domain.Task], error) {
		return respond(e.Repo.GetTask(ctx, nil, input.ID))
	})

	transitions := []struct {
		id, path, summary string
		run               func(ctx context.Context, id, actorID string) (domain.Task, error)
	}{
		{"complete-task", "/tasks/{id}/complete", "Mark task completed", e.CompleteTask},
		{"reopen-task", "/tasks/{id}/reopen", "Reopen a completed task", e.ReopenTask},
		{"start-task", "/tasks/{id}/start", "Move task to In Progress", e.StartTask},
	}
	for _, tr := range transitions {
		huma.Register(api, huma.Operation{
			OperationID: tr.id,
			Method:      http.MethodPost,
			Path:        tr.path,
			Summary:     tr.summary,
			Errors:      mutateErrors,
		}, func(ctx context.Context, input *idPath) (*bodyResponse[domain.Task], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			return respond(tr.run(ctx, input.ID, actorID))
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "assign-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/assign",
		Summary:     "Assign task",
		Errors:      mutateErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AssignTaskRequest `json:"body"`
	}) (*bodyResponse[domain.Task], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return respond(e.AssignTask(ctx, input.ID, input.Body.AssigneeID, actorID))
	})
}

func registerTickets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-ticket",
		Method:        http.MethodPost,
		Path:          "/tickets",
		Summary:       "Create ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTicketRequest `json:"body"`
	}) (*bodyResponse[domain.Ticket], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		return respond(e.CreateTicket(ctx, engine.TicketCreateOptions{
			ID:          b.ID,
			Subject:     b.Subject,
			Description: b.Description,
			Priority:    b.Priority,
			AssigneeID:  b.AssigneeID,
			AccountID:   b.AccountID,
			ContactID:   b.ContactID,
			SLADeadline: b.SLADeadline,
			ActorID:     actorID,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tickets",
		Method:      http.MethodGet,
		Path:        "/tickets",
		Summary:     "List tickets",
	}, func(ctx context.Context, _ *struct{}) (*bodyResponse[[]domain.Ticket], error) {
		return respond(e.Repo.ListTickets(ctx))
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-ticket-status",
		Method:      http.MethodPatch,
		Path:        "/tickets/{id}/status",
		Summary:     "Set ticket status",
		Errors:      mutateErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body StatusRequest `json:"body"`
	}) (*bodyResponse[domain.Ticket], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return respond(e.SetTicketStatus(ctx, input.ID, input.Body.Status, actorID))
	})
}

func registerCalendarEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-calendar-event",
		Method:        http.MethodPost,
		Path:          "/calendar-events",
		Summary:       "Create calendar event",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateCalendarEventRequest `json:"body"`
	}) (*bodyResponse[domain.CalendarEvent], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		return respond(e.CreateCalendarEvent(ctx, engine.CalendarEventCreateOptions{
			ID:          b.ID,
			Title:       b.Title,
			Description: b.Description,
			Tags:        b.Tags,
			Priority:    b.Priority,
			OwnerID:     b.OwnerID,
			StartAt:     b.StartAt,
			EndAt:       b.EndAt,
			Related:     b.Related,
			ActorID:     actorID,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-calendar-events",
		Method:      http.MethodGet,
		Path:        "/calendar-events",
		Summary:     "List calendar events",
	}, func(ctx context.Context, _ *struct{}) (*bodyResponse[[]domain.CalendarEvent], error) {
		return respond(e.Repo.ListCalendarEvents(ctx))
	})
}

func registerLeads(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-lead",
		Method:        http.MethodPost,
		Path:          "/leads",
		Summary:       "Create lead",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateLeadRequest `json:"body"`
	}) (*bodyResponse[domain.Lead], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		return respond(e.CreateLead(ctx, engine.LeadCreateOptions{
			ID:      b.ID,
			Name:    b.Name,
			Company: b.Company,
			Email:   b.Email,
			Status:  b.Status,
			OwnerID: b.OwnerID,
			ActorID: actorID,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-leads",
		Method:      http.MethodGet,
		Path:        "/leads",
		Summary:     "List leads",
	}, func(ctx context.Context, _ *struct{}) (*bodyResponse[[]domain.Lead], error) {
		return respond(e.Repo.ListLeads(ctx))
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-lead-status",
		Method:      http.MethodPatch,
		Path:        "/leads/{id}/status",
		Summary:     "Set lead status",
		Errors:      mutateErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body StatusRequest `json:"body"`
	}) (*bodyResponse[domain.Lead], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return respond(e.SetLeadStatus(ctx, input.ID, input.Body.Status, actorID))
	})
}

func registerDeals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-deal",
		Method:        http.MethodPost,
		Path:          "/deals",
		Summary:       "Create deal",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateDealRequest `json:"body"`
	}) (*bodyResponse[domain.Deal], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		return respond(e.CreateDeal(ctx, engine.DealCreateOptions{
			ID:            b.ID,
			Name:          b.Name,
			AccountID:     b.AccountID,
			Stage:         b.Stage,
			Value:         b.Value,
			OwnerID:       b.OwnerID,
			NextMeetingAt: b.NextMeetingAt,
			ActorID:       actorID,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-deals",
		Method:      http.MethodGet,
		Path:        "/deals",
		Summary:     "List deals",
	}, func(ctx context.Context, _ *struct{}) (*bodyResponse[[]domain.Deal], error) {
		return respond(e.Repo.ListDeals(ctx))
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-deal-stage",
		Method:      http.MethodPatch,
		Path:        "/deals/{id}/stage",
		Summary:     "Set deal stage and next meeting",
		Errors:      mutateErrors,
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body DealStageRequest `json:"body"`
	}) (*bodyResponse[domain.Deal], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return respond(e.SetDealStage(ctx, input.ID, input.Body.Stage, input.Body.NextMeetingAt, actorID))
	})
}

func registerMessages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-message",
		Method:        http.MethodPost,
		Path:          "/messages",
		Summary:       "Record a communication",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body RecordMessageRequest `json:"body"`
	}) (*bodyResponse[domain.Message], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		return respond(e.RecordMessage(ctx, engine.MessageRecordOptions{
			ID:              b.ID,
			Direction:       b.Direction,
			SenderContactID: b.SenderContactID,
			SenderAccountID: b.SenderAccountID,
			SenderEmail:     b.SenderEmail,
			Subject:         b.Subject,
			Body:            b.Body,
			ReceivedAt:      b.ReceivedAt,
			ActorID:         actorID,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/messages",
		Summary:     "List messages",
	}, func(ctx context.Context, input *struct {
		Pending bool `query:"pending" doc:"Only inbound messages awaiting a reply"`
	}) (*bodyResponse[[]domain.Message], error) {
		return respond(e.Repo.ListMessages(ctx, input.Pending))
	})

	huma.Register(api, huma.Operation{
		OperationID: "reply-message",
		Method:      http.MethodPost,
		Path:        "/messages/{id}/reply",
		Summary:     "Mark an inbound message replied",
		Errors:      mutateErrors,
	}, func(ctx context.Context, input *idPath) (*bodyResponse[domain.Message], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return respond(e.MarkMessageReplied(ctx, input.ID, actorID))
	})
}

// registerDirectory covers the reference collections items link to.
func registerDirectory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-account",
		Method:        http.MethodPost,
		Path:          "/accounts",
		Summary:       "Create account",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateAccountRequest `json:"body"`
	}) (*bodyResponse[domain.Account], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		return respond(e.CreateAccount(ctx, engine.AccountCreateOptions{
			ID:       b.ID,
			Name:     b.Name,
			Industry: b.Industry,
			OwnerID:  b.OwnerID,
			ActorID:  actorID,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-accounts",
		Method:      http.MethodGet,
		Path:        "/accounts",
		Summary:     "List accounts",
	}, func(ctx context.Context, _ *struct{}) (*bodyResponse[[]domain.Account], error) {
		return respond(e.Repo.ListAccounts(ctx))
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-contact",
		Method:        http.MethodPost,
		Path:          "/contacts",
		Summary:       "Create contact",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateContactRequest `json:"body"`
	}) (*bodyResponse[domain.Contact], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		return respond(e.CreateContact(ctx, engine.ContactCreateOptions{
			ID:        b.ID,
			AccountID: b.AccountID,
			Name:      b.Name,
			Email:     b.Email,
			Phone:     b.Phone,
			ActorID:   actorID,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contacts",
		Method:      http.MethodGet,
		Path:        "/contacts",
		Summary:     "List contacts",
	}, func(ctx context.Context, _ *struct{}) (*bodyResponse[[]domain.Contact], error) {
		return respond(e.Repo.ListContacts(ctx))
	})
}
