package app_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"deskline/internal/app"
	"deskline/internal/config"
	"deskline/internal/repo"
)

func TestOpenSeedsDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	eng, conn, err := app.Open(ctx, dir, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if eng.Config.Owner() != app.DefaultOwner {
		t.Fatalf("expected default owner, got %q", eng.Config.Owner())
	}
	stored, err := repo.Repo{DB: conn}.GetConfig(ctx)
	if err != nil {
		t.Fatalf("stored config: %v", err)
	}
	if stored.Schedule.InboundSample != 5 {
		t.Fatalf("expected seeded inbound sample 5, got %d", stored.Schedule.InboundSample)
	}
}

func TestWorkspaceFileOverridesStoredConfig(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, conn, err := app.Open(ctx, dir, "alice", logger)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	conn.Close()

	yml := "workspace:\n  owner: bob\nschedule:\n  inbound_sample: 0\n  deal_high_value: 500\n"
	if err := os.WriteFile(config.Path(dir), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	eng, conn, err := app.Open(ctx, dir, "alice", logger)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer conn.Close()
	if eng.Config.Owner() != "bob" {
		t.Fatalf("expected file owner, got %q", eng.Config.Owner())
	}
	rules, err := eng.Config.ScheduleRules()
	if err != nil {
		t.Fatal(err)
	}
	if rules.InboundSample != 0 || rules.DealHighValue != 500 {
		t.Fatalf("file values not applied: %+v", rules)
	}
	if len(rules.LeadWorking) != 2 {
		t.Fatalf("missing keys should keep defaults, got %v", rules.LeadWorking)
	}
}
