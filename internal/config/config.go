package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"deskline/internal/schedule"
)

// Config models deskline.yml.
type Config struct {
	Workspace struct {
		Owner string `yaml:"owner"`
	} `yaml:"workspace"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ScheduleConfig holds the thresholds that shape the unified schedule.
// Durations are Go duration strings ("24h", "90m").
type ScheduleConfig struct {
	InboundSample  int     `yaml:"inbound_sample"`
	FollowUpWindow string  `yaml:"followup_window"`
	DealHighValue  float64 `yaml:"deal_high_value"`
	LeadStatuses   struct {
		Working  []string `yaml:"working"`
		Escalate string   `yaml:"escalate"`
	} `yaml:"lead_statuses"`
	CalendarTags struct {
		Personal string `yaml:"personal"`
		FollowUp string `yaml:"followup"`
	} `yaml:"calendar_tags"`
	JobTaskType    string   `yaml:"job_task_type"`
	TicketTerminal []string `yaml:"ticket_terminal"`
	DealClosed     []string `yaml:"deal_closed"`
	TicketSLA      struct {
		High   string `yaml:"high"`
		Medium string `yaml:"medium"`
		Low    string `yaml:"low"`
	} `yaml:"ticket_sla"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Workspace.Owner) == "" {
		return fmt.Errorf("config.workspace.owner is required")
	}
	s := c.Schedule
	if s.InboundSample < 0 {
		return fmt.Errorf("config.schedule.inbound_sample must be >= 0")
	}
	if s.DealHighValue < 0 {
		return fmt.Errorf("config.schedule.deal_high_value must be >= 0")
	}
	if len(s.LeadStatuses.Working) == 0 {
		return fmt.Errorf("config.schedule.lead_statuses.working is required")
	}
	for _, st := range s.LeadStatuses.Working {
		if strings.TrimSpace(st) == "" {
			return fmt.Errorf("config.schedule.lead_statuses.working has empty status")
		}
	}
	if esc := s.LeadStatuses.Escalate; esc != "" && !containsFold(s.LeadStatuses.Working, esc) {
		return fmt.Errorf("escalate status %s is not a working lead status", esc)
	}
	if s.CalendarTags.Personal != "" && strings.EqualFold(s.CalendarTags.Personal, s.CalendarTags.FollowUp) {
		return fmt.Errorf("calendar tags personal and followup must differ")
	}
	durations := map[string]string{
		"followup_window":   s.FollowUpWindow,
		"ticket_sla.high":   s.TicketSLA.High,
		"ticket_sla.medium": s.TicketSLA.Medium,
		"ticket_sla.low":    s.TicketSLA.Low,
	}
	for key, raw := range durations {
		if _, err := parseDuration(raw); err != nil {
			return fmt.Errorf("config.schedule.%s: %w", key, err)
		}
	}
	return nil
}

// ScheduleRules converts the schedule section into projector rules.
func (c *Config) ScheduleRules() (schedule.Rules, error) {
	if err := c.Validate(); err != nil {
		return schedule.Rules{}, err
	}
	s := c.Schedule
	rules := schedule.Rules{
		InboundSample:  s.InboundSample,
		DealHighValue:  s.DealHighValue,
		LeadWorking:    append([]string(nil), s.LeadStatuses.Working...),
		LeadEscalate:   s.LeadStatuses.Escalate,
		PersonalTag:    s.CalendarTags.Personal,
		FollowUpTag:    s.CalendarTags.FollowUp,
		JobTaskType:    s.JobTaskType,
		TicketTerminal: append([]string(nil), s.TicketTerminal...),
		DealClosed:     append([]string(nil), s.DealClosed...),
		TicketSLA:      map[schedule.Priority]time.Duration{},
	}
	rules.FollowUpWindow, _ = parseDuration(s.FollowUpWindow)
	rules.TicketSLA[schedule.PriorityHigh], _ = parseDuration(s.TicketSLA.High)
	rules.TicketSLA[schedule.PriorityMedium], _ = parseDuration(s.TicketSLA.Medium)
	rules.TicketSLA[schedule.PriorityLow], _ = parseDuration(s.TicketSLA.Low)
	return rules, nil
}

// Owner is the assignee the "assigned to me" filter matches by default.
func (c *Config) Owner() string {
	return c.Workspace.Owner
}

// YAML renders the config back to deskline.yml form.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "deskline.yml")
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config for a workspace owner.
func Default(owner string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, owner)), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s is negative", s)
	}
	return d, nil
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

const defaultTemplate = `workspace:
  owner: %q

schedule:
  # unanswered inbound messages turned into follow-ups, newest first; 0 = all
  inbound_sample: 5
  followup_window: 24h
  deal_high_value: 10000

  lead_statuses:
    working: [Contacted, Qualified]
    escalate: Qualified

  calendar_tags:
    personal: Personal
    followup: Follow-up

  job_task_type: Job

  ticket_terminal: [Resolved, Closed]
  deal_closed: [Closed Won, Closed Lost]

  ticket_sla:
    high: 4h
    medium: 24h
    low: 72h
`
