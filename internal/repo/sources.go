package repo

import (
	"context"
	"fmt"

	"deskline/internal/domain"
	"deskline/internal/schedule"
)

// LoadSources reads every collection the schedule projects from. Each
// collection keeps its insertion order, which the schedule uses as
// tie-break. A row that cannot be decoded is logged and left out so one bad
// record never empties the schedule.
func (r Repo) LoadSources(ctx context.Context) (schedule.Sources, error) {
	var (
		src schedule.Sources
		err error
	)
	tasksQuery, tasksArgs := listTasksQuery(TaskFilters{})
	if src.Tasks, err = collect(ctx, r.DB, tasksQuery, scanTask, func(t domain.Task, err error) {
		r.skipRow("task", t.ID, err)
	}, tasksArgs...); err != nil {
		return src, fmt.Errorf("load tasks: %w", err)
	}
	if src.Tickets, err = collect(ctx, r.DB, listTicketsQuery, scanTicket, func(t domain.Ticket, err error) {
		r.skipRow("ticket", t.ID, err)
	}); err != nil {
		return src, fmt.Errorf("load tickets: %w", err)
	}
	if src.Events, err = collect(ctx, r.DB, listCalendarEventsQuery, scanCalendarEvent, func(ev domain.CalendarEvent, err error) {
		r.skipRow("calendar_event", ev.ID, err)
	}); err != nil {
		return src, fmt.Errorf("load calendar events: %w", err)
	}
	if src.Leads, err = collect(ctx, r.DB, listLeadsQuery, scanLead, func(l domain.Lead, err error) {
		r.skipRow("lead", l.ID, err)
	}); err != nil {
		return src, fmt.Errorf("load leads: %w", err)
	}
	if src.Messages, err = collect(ctx, r.DB, listMessagesQuery(true), scanMessage, func(m domain.Message, err error) {
		r.skipRow("message", m.ID, err)
	}); err != nil {
		return src, fmt.Errorf("load messages: %w", err)
	}
	if src.Deals, err = collect(ctx, r.DB, listDealsQuery, scanDeal, func(d domain.Deal, err error) {
		r.skipRow("deal", d.ID, err)
	}); err != nil {
		return src, fmt.Errorf("load deals: %w", err)
	}
	if src.Contacts, err = collect(ctx, r.DB, listContactsQuery, scanContact, func(c domain.Contact, err error) {
		r.skipRow("contact", c.ID, err)
	}); err != nil {
		return src, fmt.Errorf("load contacts: %w", err)
	}
	if src.Accounts, err = collect(ctx, r.DB, listAccountsQuery, scanAccount, func(a domain.Account, err error) {
		r.skipRow("account", a.ID, err)
	}); err != nil {
		return src, fmt.Errorf("load accounts: %w", err)
	}
	return src, nil
}

func (r Repo) skipRow(table, id string, err error) {
	r.logger().Warn("skipping unreadable row", "table", table, "id", id, "error", err)
}
