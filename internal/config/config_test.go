package config_test

import (
	"strings"
	"testing"
	"time"

	"deskline/internal/config"
	"deskline/internal/schedule"
)

func TestDefaultMatchesScheduleDefaults(t *testing.T) {
	rules, err := config.Default("me").ScheduleRules()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	want := schedule.DefaultRules()
	if rules.InboundSample != want.InboundSample || rules.FollowUpWindow != want.FollowUpWindow || rules.DealHighValue != want.DealHighValue {
		t.Fatalf("got %+v want %+v", rules, want)
	}
	for p, d := range want.TicketSLA {
		if rules.TicketSLA[p] != d {
			t.Fatalf("sla %s: got %s want %s", p, rules.TicketSLA[p], d)
		}
	}
	if rules.PersonalTag != want.PersonalTag || rules.FollowUpTag != want.FollowUpTag || rules.JobTaskType != want.JobTaskType {
		t.Fatalf("tags: got %+v", rules)
	}
}

func TestFromYAMLValidation(t *testing.T) {
	cases := []struct {
		name string
		yml  string
		want string
	}{
		{"owner", "schedule:\n  inbound_sample: 3\n", "owner is required"},
		{"negative sample", "workspace: {owner: me}\nschedule:\n  inbound_sample: -1\n", "inbound_sample"},
		{"bad duration", "workspace: {owner: me}\nschedule:\n  followup_window: soon\n", "followup_window"},
		{"escalate", "workspace: {owner: me}\nschedule:\n  lead_statuses: {working: [Contacted], escalate: Qualified}\n", "escalate"},
		{"yaml", "workspace: [", "invalid config yaml"},
	}
	for _, tc := range cases {
		_, err := config.FromYAML([]byte(tc.yml))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestYAMLRoundTripKeepsRules(t *testing.T) {
	cfg, err := config.FromYAML([]byte("workspace: {owner: me}\nschedule:\n  followup_window: 90m\n  ticket_sla: {high: 1h}\n"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := cfg.YAML()
	if err != nil {
		t.Fatal(err)
	}
	again, err := config.FromYAML(out)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}
	rules, err := again.ScheduleRules()
	if err != nil {
		t.Fatal(err)
	}
	if rules.FollowUpWindow != 90*time.Minute || rules.TicketSLA[schedule.PriorityHigh] != time.Hour {
		t.Fatalf("unexpected rules %+v", rules)
	}
	if rules.TicketSLA[schedule.PriorityLow] != 72*time.Hour {
		t.Fatalf("unset sla keys keep defaults, got %s", rules.TicketSLA[schedule.PriorityLow])
	}
}
