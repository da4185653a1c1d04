package schedule

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"deskline/internal/domain"
)

// Rules holds the business thresholds the projector applies.
type Rules struct {
	// InboundSample caps how many unanswered inbound messages become
	// follow-ups, most recent first. Zero means no cap.
	InboundSample int
	// FollowUpWindow is the reply deadline for a follow-up, measured from
	// the message's arrival. Zero leaves follow-ups without a deadline.
	FollowUpWindow time.Duration
	// DealHighValue is the deal value above which meetings are high priority.
	DealHighValue float64
	// LeadWorking lists lead statuses that need a callback.
	LeadWorking []string
	// LeadEscalate is the most advanced pre-conversion lead status.
	LeadEscalate string
	PersonalTag  string
	FollowUpTag  string
	// JobTaskType marks tasks that project as jobs.
	JobTaskType    string
	TicketTerminal []string
	DealClosed     []string
	// TicketSLA derives a deadline for tickets that carry none.
	TicketSLA map[Priority]time.Duration
}

// DefaultRules returns the rules used when no workspace config overrides them.
func DefaultRules() Rules {
	return Rules{
		InboundSample:  5,
		FollowUpWindow: 24 * time.Hour,
		DealHighValue:  10000,
		LeadWorking:    []string{domain.LeadStatusContacted, domain.LeadStatusQualified},
		LeadEscalate:   domain.LeadStatusQualified,
		PersonalTag:    "Personal",
		FollowUpTag:    "Follow-up",
		JobTaskType:    "Job",
		TicketTerminal: []string{domain.TicketStatusResolved, domain.TicketStatusClosed},
		DealClosed:     []string{domain.DealStageClosedWon, domain.DealStageClosedLost},
		TicketSLA: map[Priority]time.Duration{
			PriorityHigh:   4 * time.Hour,
			PriorityMedium: 24 * time.Hour,
			PriorityLow:    72 * time.Hour,
		},
	}
}

// Sources is the read-only input of a projection. Each slice is in
// collection order, which is also the tie-break order of the final sort.
type Sources struct {
	Tasks    []domain.Task
	Tickets  []domain.Ticket
	Events   []domain.CalendarEvent
	Leads    []domain.Lead
	Messages []domain.Message
	Deals    []domain.Deal

	Contacts []domain.Contact
	Accounts []domain.Account
}

// Projector converts source collections into Items.
type Projector struct {
	Rules  Rules
	Now    func() time.Time
	Logger *slog.Logger
}

func NewProjector(rules Rules, logger *slog.Logger) Projector {
	return Projector{Rules: rules, Now: time.Now, Logger: logger}
}

func (p Projector) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Projector) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Project builds the unified list. A record that cannot be projected is
// logged and left out; it never fails the whole projection.
func (p Projector) Project(src Sources) []Item {
	now := p.now()
	refs := newRefIndex(src)
	items := make([]Item, 0, len(src.Tasks)+len(src.Tickets)+len(src.Events)+len(src.Leads)+len(src.Messages)+len(src.Deals))

	for _, t := range src.Tasks {
		if it, ok := p.task(t, refs, now); ok {
			items = append(items, it)
		}
	}
	for _, t := range src.Tickets {
		if it, ok := p.ticket(t, refs, now); ok {
			items = append(items, it)
		}
	}
	for _, ev := range src.Events {
		if it, ok := p.event(ev, refs, now); ok {
			items = append(items, it)
		}
	}
	for _, l := range src.Leads {
		if it, ok := p.lead(l); ok {
			items = append(items, it)
		}
	}
	for _, m := range p.sampleInbound(src.Messages) {
		if it, ok := p.message(m, refs, now); ok {
			items = append(items, it)
		}
	}
	for _, d := range src.Deals {
		if it, ok := p.deal(d, now); ok {
			items = append(items, it)
		}
	}
	return items
}

func (p Projector) skip(kind SourceKind, id, reason string) {
	p.logger().Warn("schedule: skipping malformed record", "source", kind, "id", id, "reason", reason)
}

func (p Projector) task(t domain.Task, refs refIndex, now time.Time) (Item, bool) {
	if t.ID == "" || strings.TrimSpace(t.Title) == "" {
		p.skip(SourceTask, t.ID, "missing id or title")
		return Item{}, false
	}
	kind := KindTask
	if p.Rules.JobTaskType != "" && strings.EqualFold(t.Type, p.Rules.JobTaskType) {
		kind = KindJob
	}
	it := newItem(kind, Direct(SourceTask, t.ID))
	it.Title = t.Title
	it.Description = t.Description
	it.DueAt = t.DueAt
	it.Priority = ParsePriority(t.Priority)
	it.Assignee = t.AssigneeID
	it.Linked = refs.resolve(t.Related)
	open := StatusPending
	if strings.EqualFold(t.Status, domain.TaskStatusInProgress) {
		open = StatusInProgress
	}
	it.Status = deriveStatus(strings.EqualFold(t.Status, domain.TaskStatusCompleted), t.DueAt, now, open)
	return it, true
}

func (p Projector) ticket(t domain.Ticket, refs refIndex, now time.Time) (Item, bool) {
	if containsFold(p.Rules.TicketTerminal, t.Status) {
		return Item{}, false
	}
	if t.ID == "" || strings.TrimSpace(t.Subject) == "" {
		p.skip(SourceTicket, t.ID, "missing id or subject")
		return Item{}, false
	}
	it := newItem(KindTicket, Direct(SourceTicket, t.ID))
	it.Title = t.Subject
	it.Description = t.Description
	it.Priority = ParsePriority(t.Priority)
	it.Assignee = t.AssigneeID
	if t.ContactID != "" {
		it.Linked = refs.resolve(&domain.EntityRef{Kind: domain.EntityContact, ID: t.ContactID})
	}
	if it.Linked == nil && t.AccountID != "" {
		it.Linked = refs.resolve(&domain.EntityRef{Kind: domain.EntityAccount, ID: t.AccountID})
	}
	it.DueAt = p.slaDeadline(t, it.Priority)
	it.Status = deriveStatus(false, it.DueAt, now, StatusPending)
	if it.DueAt != nil {
		it.SLALabel = SLALabel(*it.DueAt, now)
	}
	return it, true
}

func (p Projector) slaDeadline(t domain.Ticket, prio Priority) *time.Time {
	if t.SLADeadline != nil {
		return t.SLADeadline
	}
	window := p.Rules.TicketSLA[prio]
	if window <= 0 || t.CreatedAt.IsZero() {
		return nil
	}
	deadline := t.CreatedAt.Add(window)
	return &deadline
}

func (p Projector) event(ev domain.CalendarEvent, refs refIndex, now time.Time) (Item, bool) {
	var kind Kind
	for _, tag := range ev.Tags {
		if p.Rules.PersonalTag != "" && strings.EqualFold(tag, p.Rules.PersonalTag) {
			kind = KindPersonal
			break
		}
		if p.Rules.FollowUpTag != "" && strings.EqualFold(tag, p.Rules.FollowUpTag) {
			kind = KindFollowUp
			break
		}
	}
	if kind == "" {
		return Item{}, false
	}
	if ev.ID == "" || strings.TrimSpace(ev.Title) == "" || ev.StartAt.IsZero() {
		p.skip(SourceCalendarEvent, ev.ID, "missing id, title or start")
		return Item{}, false
	}
	it := newItem(kind, Direct(SourceCalendarEvent, ev.ID))
	it.Title = ev.Title
	it.Description = ev.Description
	start := ev.StartAt
	it.DueAt = &start
	it.Priority = ParsePriority(ev.Priority)
	it.Assignee = ev.OwnerID
	it.Linked = refs.resolve(ev.Related)
	it.Status = deriveStatus(false, it.DueAt, now, StatusPending)
	return it, true
}

func (p Projector) lead(l domain.Lead) (Item, bool) {
	if !containsFold(p.Rules.LeadWorking, l.Status) {
		return Item{}, false
	}
	if l.ID == "" || strings.TrimSpace(l.Name) == "" {
		p.skip(SourceLead, l.ID, "missing id or name")
		return Item{}, false
	}
	it := newItem(KindCallback, Synthesized(SourceLead, l.ID))
	it.Title = "Call back " + l.Name
	it.Description = l.Company
	if p.Rules.LeadEscalate != "" && strings.EqualFold(l.Status, p.Rules.LeadEscalate) {
		it.Priority = PriorityHigh
	}
	it.Assignee = l.OwnerID
	it.Linked = &LinkedEntity{Kind: domain.EntityLead, ID: l.ID, DisplayName: l.Name}
	return it, true
}

// sampleInbound picks the most recent unanswered inbound messages, newest
// first, up to the configured sample size.
func (p Projector) sampleInbound(msgs []domain.Message) []domain.Message {
	var pending []domain.Message
	for _, m := range msgs {
		if m.Replied || !strings.EqualFold(m.Direction, domain.MessageInbound) {
			continue
		}
		if m.ID == "" || m.ReceivedAt.IsZero() {
			p.skip(SourceMessage, m.ID, "missing id or received time")
			continue
		}
		pending = append(pending, m)
	}
	slices.SortStableFunc(pending, func(a, b domain.Message) int {
		return b.ReceivedAt.Compare(a.ReceivedAt)
	})
	if n := p.Rules.InboundSample; n > 0 && len(pending) > n {
		pending = pending[:n]
	}
	return pending
}

func (p Projector) message(m domain.Message, refs refIndex, now time.Time) (Item, bool) {
	linked := refs.sender(m)
	if linked == nil {
		p.logger().Debug("schedule: skipping follow-up with unresolvable sender", "message", m.ID)
		return Item{}, false
	}
	it := newItem(KindFollowUp, Synthesized(SourceMessage, m.ID))
	it.Title = "Follow up with " + linked.DisplayName
	it.Description = m.Subject
	it.Linked = linked
	if p.Rules.FollowUpWindow > 0 {
		due := m.ReceivedAt.Add(p.Rules.FollowUpWindow)
		it.DueAt = &due
	}
	it.Status = deriveStatus(false, it.DueAt, now, StatusPending)
	return it, true
}

func (p Projector) deal(d domain.Deal, now time.Time) (Item, bool) {
	if containsFold(p.Rules.DealClosed, d.Stage) {
		return Item{}, false
	}
	if d.ID == "" || strings.TrimSpace(d.Name) == "" {
		p.skip(SourceDeal, d.ID, "missing id or name")
		return Item{}, false
	}
	it := newItem(KindMeeting, Synthesized(SourceDeal, d.ID))
	it.Title = "Meeting: " + d.Name
	it.Description = fmt.Sprintf("%s · %.0f", d.Stage, d.Value)
	if d.Value > p.Rules.DealHighValue {
		it.Priority = PriorityHigh
	}
	it.Assignee = d.OwnerID
	it.Linked = &LinkedEntity{Kind: domain.EntityDeal, ID: d.ID, DisplayName: d.Name}
	it.DueAt = d.NextMeetingAt
	it.Status = deriveStatus(false, it.DueAt, now, StatusPending)
	return it, true
}

type refIndex struct {
	leads           map[string]domain.Lead
	deals           map[string]domain.Deal
	contacts        map[string]domain.Contact
	accounts        map[string]domain.Account
	contactsByEmail map[string]domain.Contact
}

func newRefIndex(src Sources) refIndex {
	idx := refIndex{
		leads:           make(map[string]domain.Lead, len(src.Leads)),
		deals:           make(map[string]domain.Deal, len(src.Deals)),
		contacts:        make(map[string]domain.Contact, len(src.Contacts)),
		accounts:        make(map[string]domain.Account, len(src.Accounts)),
		contactsByEmail: make(map[string]domain.Contact, len(src.Contacts)),
	}
	for _, l := range src.Leads {
		idx.leads[l.ID] = l
	}
	for _, d := range src.Deals {
		idx.deals[d.ID] = d
	}
	for _, c := range src.Contacts {
		idx.contacts[c.ID] = c
		if c.Email != "" {
			idx.contactsByEmail[strings.ToLower(c.Email)] = c
		}
	}
	for _, a := range src.Accounts {
		idx.accounts[a.ID] = a
	}
	return idx
}

// resolve turns a weak reference into a linked entity, or nil when the
// target is missing or has no display name.
func (idx refIndex) resolve(ref *domain.EntityRef) *LinkedEntity {
	if ref == nil || ref.ID == "" {
		return nil
	}
	var name string
	switch ref.Kind {
	case domain.EntityLead:
		name = idx.leads[ref.ID].Name
	case domain.EntityDeal:
		name = idx.deals[ref.ID].Name
	case domain.EntityContact:
		name = idx.contacts[ref.ID].Name
	case domain.EntityAccount:
		name = idx.accounts[ref.ID].Name
	}
	if strings.TrimSpace(name) == "" {
		return nil
	}
	return &LinkedEntity{Kind: ref.Kind, ID: ref.ID, DisplayName: name}
}

func (idx refIndex) sender(m domain.Message) *LinkedEntity {
	if l := idx.resolve(&domain.EntityRef{Kind: domain.EntityContact, ID: m.SenderContactID}); l != nil {
		return l
	}
	if l := idx.resolve(&domain.EntityRef{Kind: domain.EntityAccount, ID: m.SenderAccountID}); l != nil {
		return l
	}
	if m.SenderEmail == "" {
		return nil
	}
	c, ok := idx.contactsByEmail[strings.ToLower(m.SenderEmail)]
	if !ok || strings.TrimSpace(c.Name) == "" {
		return nil
	}
	return &LinkedEntity{Kind: domain.EntityContact, ID: c.ID, DisplayName: c.Name}
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
