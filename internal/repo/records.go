package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deskline/internal/domain"
)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Accounts

func (r Repo) InsertAccount(ctx context.Context, tx *sql.Tx, a domain.Account) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO accounts(id,name,industry,owner_id,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.Name, nullable(a.Industry), nullable(a.OwnerID), formatTime(a.CreatedAt))
	return err
}

const accountColumns = `id,name,COALESCE(industry,''),COALESCE(owner_id,''),created_at`

func scanAccount(s scanner) (domain.Account, error) {
	var a domain.Account
	var createdAt string
	if err := s.Scan(&a.ID, &a.Name, &a.Industry, &a.OwnerID, &createdAt); err != nil {
		return a, notFound(err)
	}
	var err error
	a.CreatedAt, err = parseTime(createdAt)
	return a, err
}

func (r Repo) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=?`, id))
}

const listAccountsQuery = `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, rowid`

func (r Repo) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return list(ctx, r.DB, listAccountsQuery, scanAccount)
}

// Contacts

func (r Repo) InsertContact(ctx context.Context, tx *sql.Tx, c domain.Contact) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO contacts(id,account_id,name,email,phone,created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, nullable(c.AccountID), c.Name, nullable(c.Email), nullable(c.Phone), formatTime(c.CreatedAt))
	return err
}

const contactColumns = `id,COALESCE(account_id,''),name,COALESCE(email,''),COALESCE(phone,''),created_at`

func scanContact(s scanner) (domain.Contact, error) {
	var c domain.Contact
	var createdAt string
	if err := s.Scan(&c.ID, &c.AccountID, &c.Name, &c.Email, &c.Phone, &createdAt); err != nil {
		return c, notFound(err)
	}
	var err error
	c.CreatedAt, err = parseTime(createdAt)
	return c, err
}

func (r Repo) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	return scanContact(r.DB.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id=?`, id))
}

const listContactsQuery = `SELECT ` + contactColumns + ` FROM contacts ORDER BY created_at, rowid`

func (r Repo) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	return list(ctx, r.DB, listContactsQuery, scanContact)
}

// Tickets

func (r Repo) InsertTicket(ctx context.Context, tx *sql.Tx, t domain.Ticket) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tickets(id,subject,description,status,priority,assignee_id,account_id,contact_id,sla_deadline,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Subject, nullable(t.Description), t.Status, nullable(t.Priority), nullable(t.AssigneeID),
		nullable(t.AccountID), nullable(t.ContactID), nullableTime(t.SLADeadline), formatTime(t.CreatedAt))
	return err
}

const ticketColumns = `id,subject,COALESCE(description,''),status,COALESCE(priority,''),COALESCE(assignee_id,''),COALESCE(account_id,''),COALESCE(contact_id,''),sla_deadline,created_at`

func scanTicket(s scanner) (domain.Ticket, error) {
	var t domain.Ticket
	var sla sql.NullString
	var createdAt string
	if err := s.Scan(&t.ID, &t.Subject, &t.Description, &t.Status, &t.Priority, &t.AssigneeID, &t.AccountID, &t.ContactID, &sla, &createdAt); err != nil {
		return t, notFound(err)
	}
	var err error
	if t.SLADeadline, err = parseNullTime(sla); err != nil {
		return t, err
	}
	t.CreatedAt, err = parseTime(createdAt)
	return t, err
}

func (r Repo) GetTicket(ctx context.Context, tx *sql.Tx, id string) (domain.Ticket, error) {
	return scanTicket(r.q(tx).QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=?`, id))
}

const listTicketsQuery = `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at, rowid`

func (r Repo) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	return list(ctx, r.DB, listTicketsQuery, scanTicket)
}

func (r Repo) SetTicketStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE tickets SET status=? WHERE id=?`, status, id))
}

// Calendar events

func (r Repo) InsertCalendarEvent(ctx context.Context, tx *sql.Tx, ev domain.CalendarEvent) error {
	tags := ev.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	relKind, relID := refParts(ev.Related)
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO calendar_events(id,title,description,tags_json,priority,owner_id,start_at,end_at,related_kind,related_id,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.Title, nullable(ev.Description), string(tagsJSON), nullable(ev.Priority), nullable(ev.OwnerID),
		formatTime(ev.StartAt), nullableTime(ev.EndAt), relKind, relID, formatTime(ev.CreatedAt))
	return err
}

const calendarColumns = `id,title,COALESCE(description,''),tags_json,COALESCE(priority,''),COALESCE(owner_id,''),start_at,end_at,related_kind,related_id,created_at`

func scanCalendarEvent(s scanner) (domain.CalendarEvent, error) {
	var ev domain.CalendarEvent
	var tagsJSON, startAt, createdAt string
	var endAt, relKind, relID sql.NullString
	if err := s.Scan(&ev.ID, &ev.Title, &ev.Description, &tagsJSON, &ev.Priority, &ev.OwnerID, &startAt, &endAt, &relKind, &relID, &createdAt); err != nil {
		return ev, notFound(err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &ev.Tags); err != nil {
		return ev, fmt.Errorf("calendar event %s tags: %w", ev.ID, err)
	}
	var err error
	if ev.StartAt, err = parseTime(startAt); err != nil {
		return ev, err
	}
	if ev.EndAt, err = parseNullTime(endAt); err != nil {
		return ev, err
	}
	ev.Related = entityRef(relKind, relID)
	ev.CreatedAt, err = parseTime(createdAt)
	return ev, err
}

func (r Repo) GetCalendarEvent(ctx context.Context, id string) (domain.CalendarEvent, error) {
	return scanCalendarEvent(r.DB.QueryRowContext(ctx, `SELECT `+calendarColumns+` FROM calendar_events WHERE id=?`, id))
}

const listCalendarEventsQuery = `SELECT ` + calendarColumns + ` FROM calendar_events ORDER BY created_at, rowid`

func (r Repo) ListCalendarEvents(ctx context.Context) ([]domain.CalendarEvent, error) {
	return list(ctx, r.DB, listCalendarEventsQuery, scanCalendarEvent)
}

// Leads

func (r Repo) InsertLead(ctx context.Context, tx *sql.Tx, l domain.Lead) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO leads(id,name,company,email,status,owner_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		l.ID, l.Name, nullable(l.Company), nullable(l.Email), l.Status, nullable(l.OwnerID), formatTime(l.CreatedAt))
	return err
}

const leadColumns = `id,name,COALESCE(company,''),COALESCE(email,''),status,COALESCE(owner_id,''),created_at`

func scanLead(s scanner) (domain.Lead, error) {
	var l domain.Lead
	var createdAt string
	if err := s.Scan(&l.ID, &l.Name, &l.Company, &l.Email, &l.Status, &l.OwnerID, &createdAt); err != nil {
		return l, notFound(err)
	}
	var err error
	l.CreatedAt, err = parseTime(createdAt)
	return l, err
}

func (r Repo) GetLead(ctx context.Context, tx *sql.Tx, id string) (domain.Lead, error) {
	return scanLead(r.q(tx).QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=?`, id))
}

const listLeadsQuery = `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at, rowid`

func (r Repo) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	return list(ctx, r.DB, listLeadsQuery, scanLead)
}

func (r Repo) SetLeadStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE leads SET status=? WHERE id=?`, status, id))
}

// Deals

func (r Repo) InsertDeal(ctx context.Context, tx *sql.Tx, d domain.Deal) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO deals(id,name,account_id,stage,value,owner_id,next_meeting_at,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, d.Name, nullable(d.AccountID), d.Stage, d.Value, nullable(d.OwnerID), nullableTime(d.NextMeetingAt), formatTime(d.CreatedAt))
	return err
}

const dealColumns = `id,name,COALESCE(account_id,''),stage,value,COALESCE(owner_id,''),next_meeting_at,created_at`

func scanDeal(s scanner) (domain.Deal, error) {
	var d domain.Deal
	var meeting sql.NullString
	var createdAt string
	if err := s.Scan(&d.ID, &d.Name, &d.AccountID, &d.Stage, &d.Value, &d.OwnerID, &meeting, &createdAt); err != nil {
		return d, notFound(err)
	}
	var err error
	if d.NextMeetingAt, err = parseNullTime(meeting); err != nil {
		return d, err
	}
	d.CreatedAt, err = parseTime(createdAt)
	return d, err
}

func (r Repo) GetDeal(ctx context.Context, tx *sql.Tx, id string) (domain.Deal, error) {
	return scanDeal(r.q(tx).QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id=?`, id))
}

const listDealsQuery = `SELECT ` + dealColumns + ` FROM deals ORDER BY created_at, rowid`

func (r Repo) ListDeals(ctx context.Context) ([]domain.Deal, error) {
	return list(ctx, r.DB, listDealsQuery, scanDeal)
}

func (r Repo) SetDealStage(ctx context.Context, tx *sql.Tx, id, stage string) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE deals SET stage=? WHERE id=?`, stage, id))
}

// SetDealMeeting sets or, with a nil at, clears the next meeting time.
func (r Repo) SetDealMeeting(ctx context.Context, tx *sql.Tx, id string, at *time.Time) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE deals SET next_meeting_at=? WHERE id=?`, nullableTime(at), id))
}

// Messages

func (r Repo) InsertMessage(ctx context.Context, tx *sql.Tx, m domain.Message) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO messages(id,direction,sender_contact_id,sender_account_id,sender_email,subject,body,replied,received_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Direction, nullable(m.SenderContactID), nullable(m.SenderAccountID), nullable(m.SenderEmail),
		nullable(m.Subject), nullable(m.Body), m.Replied, formatTime(m.ReceivedAt))
	return err
}

const messageColumns = `id,direction,COALESCE(sender_contact_id,''),COALESCE(sender_account_id,''),COALESCE(sender_email,''),COALESCE(subject,''),COALESCE(body,''),replied,received_at`

func scanMessage(s scanner) (domain.Message, error) {
	var m domain.Message
	var receivedAt string
	if err := s.Scan(&m.ID, &m.Direction, &m.SenderContactID, &m.SenderAccountID, &m.SenderEmail, &m.Subject, &m.Body, &m.Replied, &receivedAt); err != nil {
		return m, notFound(err)
	}
	var err error
	m.ReceivedAt, err = parseTime(receivedAt)
	return m, err
}

func (r Repo) GetMessage(ctx context.Context, tx *sql.Tx, id string) (domain.Message, error) {
	return scanMessage(r.q(tx).QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=?`, id))
}

func listMessagesQuery(pendingOnly bool) string {
	query := `SELECT ` + messageColumns + ` FROM messages`
	if pendingOnly {
		query += ` WHERE direction='` + domain.MessageInbound + `' AND replied=0`
	}
	return query + ` ORDER BY received_at, rowid`
}

// ListMessages returns messages in arrival order. When pendingOnly is set
// only unanswered inbound messages are returned.
func (r Repo) ListMessages(ctx context.Context, pendingOnly bool) ([]domain.Message, error) {
	return list(ctx, r.DB, listMessagesQuery(pendingOnly), scanMessage)
}

func (r Repo) MarkMessageReplied(ctx context.Context, tx *sql.Tx, id string) error {
	return mustAffect(r.q(tx).ExecContext(ctx, `UPDATE messages SET replied=1 WHERE id=?`, id))
}

func list[T any](ctx context.Context, q querier, query string, scan func(scanner) (T, error), args ...any) ([]T, error) {
	return collect(ctx, q, query, scan, nil, args...)
}

// collect scans every row of query. With skip set, a row that fails to scan
// is handed to skip and left out instead of failing the whole read.
func collect[T any](ctx context.Context, q querier, query string, scan func(scanner) (T, error), skip func(T, error), args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			if skip == nil {
				return nil, err
			}
			skip(v, err)
			continue
		}
		res = append(res, v)
	}
	return res, rows.Err()
}
