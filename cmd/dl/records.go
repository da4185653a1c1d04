package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"deskline/internal/domain"
	"deskline/internal/engine"
	"deskline/internal/repo"
)

// relatedFlags binds --related-kind/--related-id onto a weak reference.
type relatedFlags struct{ kind, id string }

func (r *relatedFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.kind, "related-kind", "", "linked record kind (lead, deal, contact, account)")
	cmd.Flags().StringVar(&r.id, "related-id", "", "linked record id")
}

func (r relatedFlags) ref() (*domain.EntityRef, error) {
	if r.kind == "" && r.id == "" {
		return nil, nil
	}
	if r.kind == "" || r.id == "" {
		return nil, fmt.Errorf("--related-kind and --related-id go together")
	}
	return &domain.EntityRef{Kind: r.kind, ID: r.id}, nil
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks (and jobs, tasks whose type is the configured job type) appear on the schedule until completed.",
	}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskTransitionCmd("complete", "Mark a task completed", func(e engine.Engine) taskTransition { return e.CompleteTask }))
	cmd.AddCommand(taskTransitionCmd("reopen", "Reopen a completed task", func(e engine.Engine) taskTransition { return e.ReopenTask }))
	cmd.AddCommand(taskTransitionCmd("start", "Move a task to In Progress", func(e engine.Engine) taskTransition { return e.StartTask }))
	cmd.AddCommand(taskAssignCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var due string
	var rel relatedFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.DueAt, err = parseWhen("due", due); err != nil {
				return err
			}
			if opts.Related, err = rel.ref(); err != nil {
				return err
			}
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Type, "type", "", "task type; the configured job type makes it a job")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "high, medium or low")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee-id", "", "assignee")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	rel.bind(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "Status", "Priority", "Assignee", "Due"})
				for _, t := range tasks {
					due := ""
					if t.DueAt != nil {
						due = t.DueAt.Local().Format("2006-01-02 15:04")
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Type, t.Status, t.Priority, t.AssigneeID, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee-id", "", "assignee filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "type filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

type taskTransition func(ctx context.Context, id, actorID string) (domain.Task, error)

func taskTransitionCmd(use, short string, pick func(engine.Engine) taskTransition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := pick(e)(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskAssignCmd() *cobra.Command {
	var assignee string
	cmd := &cobra.Command{
		Use:   "assign <task-id>",
		Short: "Assign a task (empty --to clears)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AssignTask(ctx, args[0], assignee, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "to", "", "assignee id")
	return cmd
}

func ticketCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "ticket", Short: "Manage support tickets"}
	cmd.AddCommand(ticketCreateCmd())
	cmd.AddCommand(ticketListCmd())
	cmd.AddCommand(ticketStatusCmd())
	return cmd
}

func ticketCreateCmd() *cobra.Command {
	var opts engine.TicketCreateOptions
	var sla string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create ticket",
		Long:  "Tickets without --sla get a deadline from the configured per-priority SLA window.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.SLADeadline, err = parseWhen("sla", sla); err != nil {
				return err
			}
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTicket(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "ticket id")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "high, medium or low")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee-id", "", "assignee")
	cmd.Flags().StringVar(&opts.AccountID, "account-id", "", "account")
	cmd.Flags().StringVar(&opts.ContactID, "contact-id", "", "contact")
	cmd.Flags().StringVar(&sla, "sla", "", "SLA deadline")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func ticketListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tickets, err := e.Repo.ListTickets(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tickets)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Subject", "Status", "Priority", "Assignee", "SLA"})
				for _, t := range tickets {
					sla := ""
					if t.SLADeadline != nil {
						sla = t.SLADeadline.Local().Format("2006-01-02 15:04")
					}
					tw.AppendRow(table.Row{t.ID, t.Subject, t.Status, t.Priority, t.AssigneeID, sla})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func ticketStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <ticket-id> <status>",
		Short: "Set ticket status (Open, In Progress, Resolved, Closed)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SetTicketStatus(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func eventCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "event", Short: "Manage calendar events"}
	cmd.AddCommand(eventCreateCmd())
	return cmd
}

func eventCreateCmd() *cobra.Command {
	var opts engine.CalendarEventCreateOptions
	var start, end string
	var rel relatedFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create calendar event",
		Long:  "Events tagged with the personal tag show as personal items; the follow-up tag makes them follow-ups.",
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseWhen("start", start)
			if err != nil {
				return err
			}
			if at == nil {
				return fmt.Errorf("--start required")
			}
			opts.StartAt = *at
			if opts.EndAt, err = parseWhen("end", end); err != nil {
				return err
			}
			if opts.Related, err = rel.ref(); err != nil {
				return err
			}
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.CreateCalendarEvent(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "event id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tags (repeatable)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "high, medium or low")
	cmd.Flags().StringVar(&opts.OwnerID, "owner-id", "", "owner")
	cmd.Flags().StringVar(&start, "start", "", "start time")
	cmd.Flags().StringVar(&end, "end", "", "end time")
	rel.bind(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func leadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads",
		Long:  "Leads in a working status produce callback items; the escalation status makes them high priority.",
	}
	cmd.AddCommand(leadCreateCmd())
	cmd.AddCommand(leadStatusCmd())
	return cmd
}

func leadCreateCmd() *cobra.Command {
	var opts engine.LeadCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CreateLead(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "lead id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Company, "company", "", "company")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Status, "status", "", "New, Contacted, Qualified, Converted or Lost")
	cmd.Flags().StringVar(&opts.OwnerID, "owner-id", "", "owner")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func leadStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <lead-id> <status>",
		Short: "Set lead status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.SetLeadStatus(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
}

func dealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deal",
		Short: "Manage deals",
		Long:  "Open deals with a next meeting produce meeting items; high-value deals are high priority.",
	}
	cmd.AddCommand(dealCreateCmd())
	cmd.AddCommand(dealStageCmd())
	return cmd
}

func dealCreateCmd() *cobra.Command {
	var opts engine.DealCreateOptions
	var meeting string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create deal",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.NextMeetingAt, err = parseWhen("meeting", meeting); err != nil {
				return err
			}
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDeal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "deal id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.AccountID, "account-id", "", "account")
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "pipeline stage")
	cmd.Flags().Float64Var(&opts.Value, "value", 0, "deal value")
	cmd.Flags().StringVar(&opts.OwnerID, "owner-id", "", "owner")
	cmd.Flags().StringVar(&meeting, "meeting", "", "next meeting time")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func dealStageCmd() *cobra.Command {
	var meeting string
	cmd := &cobra.Command{
		Use:   "stage <deal-id> <stage>",
		Short: "Set deal stage and optionally the next meeting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseWhen("meeting", meeting)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.SetDealStage(ctx, args[0], args[1], at, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&meeting, "meeting", "", "next meeting time")
	return cmd
}

func messageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Record communications",
		Long:  "Unanswered inbound messages surface as follow-ups, newest first, up to the configured sample size.",
	}
	cmd.AddCommand(messageRecordCmd())
	cmd.AddCommand(messageReplyCmd())
	return cmd
}

func messageRecordCmd() *cobra.Command {
	var opts engine.MessageRecordOptions
	var received string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.ReceivedAt, err = parseWhen("received", received); err != nil {
				return err
			}
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.RecordMessage(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "message id")
	cmd.Flags().StringVar(&opts.Direction, "direction", domain.MessageInbound, "inbound or outbound")
	cmd.Flags().StringVar(&opts.SenderContactID, "contact-id", "", "sender contact")
	cmd.Flags().StringVar(&opts.SenderAccountID, "account-id", "", "sender account")
	cmd.Flags().StringVar(&opts.SenderEmail, "from", "", "sender email")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&opts.Body, "body", "", "body")
	cmd.Flags().StringVar(&received, "received", "", "received time (default now)")
	return cmd
}

func messageReplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reply <message-id>",
		Short: "Mark an inbound message replied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.MarkMessageReplied(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func contactCmd() *cobra.Command {
	var opts engine.ContactCreateOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Create contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateContact(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	create.Flags().StringVar(&opts.ID, "id", "", "contact id")
	create.Flags().StringVar(&opts.AccountID, "account-id", "", "account")
	create.Flags().StringVar(&opts.Name, "name", "", "name")
	create.Flags().StringVar(&opts.Email, "email", "", "email")
	create.Flags().StringVar(&opts.Phone, "phone", "", "phone")
	_ = create.MarkFlagRequired("name")
	cmd := &cobra.Command{Use: "contact", Short: "Manage contacts"}
	cmd.AddCommand(create)
	return cmd
}

func accountCmd() *cobra.Command {
	var opts engine.AccountCreateOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Create account",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAccount(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	create.Flags().StringVar(&opts.ID, "id", "", "account id")
	create.Flags().StringVar(&opts.Name, "name", "", "name")
	create.Flags().StringVar(&opts.Industry, "industry", "", "industry")
	create.Flags().StringVar(&opts.OwnerID, "owner-id", "", "owner")
	_ = create.MarkFlagRequired("name")
	cmd := &cobra.Command{Use: "account", Short: "Manage accounts"}
	cmd.AddCommand(create)
	return cmd
}
