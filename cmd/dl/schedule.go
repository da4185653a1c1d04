package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"deskline/internal/engine"
	"deskline/internal/schedule"
)

type scheduleFlags struct {
	search, window, kind, quick, stat, me string
	showCompleted                         bool
}

func (f scheduleFlags) viewState() (schedule.ViewState, error) {
	var state schedule.ViewState
	var err error
	if state.Window, err = schedule.ParseWindow(f.window); err != nil {
		return state, err
	}
	if state.Kind, err = schedule.ParseKindGroup(f.kind); err != nil {
		return state, err
	}
	if f.quick != "" && f.stat != "" {
		return state, fmt.Errorf("--quick and --stat are mutually exclusive")
	}
	if f.quick != "" {
		q, err := schedule.ParseQuickFilter(f.quick)
		if err != nil {
			return state, err
		}
		state = state.WithQuick(q)
	}
	if f.stat != "" {
		st, err := schedule.ParseStatFilter(f.stat)
		if err != nil {
			return state, err
		}
		state = state.WithStat(st)
	}
	state.Search = f.search
	state.ShowCompleted = f.showCompleted
	state.Me = f.me
	return state, nil
}

func scheduleCmd() *cobra.Command {
	var f scheduleFlags
	var expand string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the unified schedule",
		Long: `Lists every pending piece of work, overdue first and then by priority.

Kinds: task, job, callback (working leads), followup (unanswered inbound messages),
meeting (open deals with a next meeting), ticket, personal (calendar events).
Use --expand <item-id> to show one item's details and available actions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := f.viewState()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.Schedule(ctx, state)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"items":        view.Items,
						"stats":        view.Stats,
						"filter":       view.State.Filter.String(),
						"generated_at": view.GeneratedAt,
					})
				}
				renderStats(view.Stats, view.State.Filter)
				renderItems(view.Items, view.GeneratedAt, schedule.Expanded(expand))
				if expand != "" {
					it, err := e.Item(ctx, expand)
					if err != nil {
						return err
					}
					renderExpanded(it)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "search title, description and linked name")
	cmd.Flags().StringVar(&f.window, "window", "all", "today, week or all")
	cmd.Flags().StringVar(&f.kind, "kind", "all", "all, tasks, calls, meetings, tickets or personal")
	cmd.Flags().StringVar(&f.quick, "quick", "", "overdue, assignedToMe or highPriority")
	cmd.Flags().StringVar(&f.stat, "stat", "", "pending, overdue, highPriority, tasksOnly, ticketsOnly or completedOnly")
	cmd.Flags().BoolVar(&f.showCompleted, "show-completed", false, "include completed items")
	cmd.Flags().StringVar(&f.me, "me", "", "assignee for --quick assignedToMe (default: workspace owner)")
	cmd.Flags().StringVar(&expand, "expand", "", "item id to expand")
	cmd.AddCommand(scheduleDoCmd())
	return cmd
}

func scheduleDoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "do <item-id> <action>",
		Short: "Run an inline action (complete, edit, open, navigate, addNote) on an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := schedule.ParseAction(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Dispatch(ctx, schedule.Expanded(args[0]), args[0], action, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					expanded, _ := res.Selection.ExpandedID()
					return printJSON(map[string]any{"expanded": expanded, "target": res.Target, "item": res.Item})
				}
				switch {
				case res.Target != nil:
					fmt.Printf("%s %s %s\n", res.Target.Kind, res.Target.EntityKind, res.Target.EntityID)
				case res.Item != nil:
					fmt.Printf("%s is now %s\n", res.Item.ID, statusText(res.Item.Status))
				default:
					fmt.Printf("%s done\n", action)
				}
				return nil
			})
		},
	}
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.Schedule(ctx, schedule.ViewState{})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view.Stats)
				}
				renderStats(view.Stats, schedule.NoFilter())
				return nil
			})
		},
	}
}

var (
	overdueColor   = color.New(color.FgRed, color.Bold)
	highColor      = color.New(color.FgRed)
	lowColor       = color.New(color.Faint)
	progressColor  = color.New(color.FgYellow)
	completedColor = color.New(color.FgGreen, color.Faint)
	activeColor    = color.New(color.Bold, color.Underline)
)

func priorityText(p schedule.Priority) string {
	switch p {
	case schedule.PriorityHigh:
		return highColor.Sprint(p)
	case schedule.PriorityLow:
		return lowColor.Sprint(p)
	default:
		return string(p)
	}
}

func statusText(s schedule.Status) string {
	switch s {
	case schedule.StatusOverdue:
		return overdueColor.Sprint(s)
	case schedule.StatusInProgress:
		return progressColor.Sprint(s)
	case schedule.StatusCompleted:
		return completedColor.Sprint(s)
	default:
		return string(s)
	}
}

func renderStats(s schedule.Stats, active schedule.ActiveFilter) {
	tiles := []struct {
		label string
		stat  schedule.StatFilter
		n     int
	}{
		{"Pending", schedule.StatPending, s.Pending},
		{"Overdue", schedule.StatOverdue, s.Overdue},
		{"High", schedule.StatHighPriority, s.HighPriority},
		{"Tasks", schedule.StatTasksOnly, s.Tasks},
		{"Tickets", schedule.StatTicketsOnly, s.Tickets},
		{"Done", schedule.StatCompletedOnly, s.Completed},
	}
	cur, hasStat := active.Stat()
	parts := make([]string, 0, len(tiles))
	for _, t := range tiles {
		txt := fmt.Sprintf("%s %d", t.label, t.n)
		if hasStat && cur == t.stat {
			txt = activeColor.Sprint(txt)
		}
		parts = append(parts, txt)
	}
	fmt.Println(strings.Join(parts, "  |  "))
}

func renderItems(items []schedule.Item, now time.Time, sel schedule.Selection) {
	if len(items) == 0 {
		fmt.Println(lowColor.Sprint("nothing scheduled"))
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"", "ID", "Kind", "Title", "Due", "Priority", "Status", "Linked", "SLA"})
	for _, it := range items {
		marker := ""
		if sel.IsExpanded(it.ID) {
			marker = ">"
		}
		due := ""
		if it.DueAt != nil {
			due = formatDue(*it.DueAt, now)
		}
		linked := ""
		if it.Linked != nil {
			linked = it.Linked.DisplayName
		}
		tw.AppendRow(table.Row{marker, it.ID, it.Kind, it.Title, due, priorityText(it.Priority), statusText(it.Status), linked, it.SLALabel})
	}
	tw.Render()
}

func formatDue(due, now time.Time) string {
	due = due.In(now.Location())
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch day := due.Sub(today); {
	case day >= 0 && day < 24*time.Hour:
		return "today " + due.Format("15:04")
	case day >= 24*time.Hour && day < 48*time.Hour:
		return "tomorrow " + due.Format("15:04")
	default:
		return due.Format("Jan 2 15:04")
	}
}

func renderExpanded(it schedule.Item) {
	fmt.Println()
	fmt.Println(activeColor.Sprint(it.Title))
	if it.Description != "" {
		fmt.Println(it.Description)
	}
	fmt.Printf("source: %s\n", it.Source)
	if it.Assignee != "" {
		fmt.Printf("assignee: %s\n", it.Assignee)
	}
	if it.Linked != nil {
		fmt.Printf("linked: %s %s (%s)\n", it.Linked.Kind, it.Linked.ID, it.Linked.DisplayName)
	}
	actions := schedule.ActionsFor(it)
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	fmt.Printf("actions: %s  (dl schedule do %s <action>)\n", strings.Join(names, ", "), it.ID)
}
