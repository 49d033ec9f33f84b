package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigLoad_SchedulerDefaults(t *testing.T) {
	_ = os.Unsetenv("MEDTRACK_TICK_INTERVAL")
	_ = os.Unsetenv("MEDTRACK_TRIGGER_TOLERANCE")
	_ = os.Unsetenv("MEDTRACK_ACTION_WINDOW")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.TickInterval != 60*time.Second || cfg.TriggerTolerance != 30*time.Second || cfg.ActionWindow != 2*time.Hour {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg)
	}
	if cfg.Timezone != "UTC" || cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected base defaults: %+v", cfg)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	_ = os.Setenv("MEDTRACK_ACTION_WINDOW", "90m")
	defer func() { _ = os.Unsetenv("MEDTRACK_ACTION_WINDOW") }()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.ActionWindow != 90*time.Minute {
		t.Fatalf("action window env override failed, got %s", cfg.ActionWindow)
	}
}

func TestResolveDefaults_RejectsBadDriver(t *testing.T) {
	cfg := &Config{DBDriver: "mongodb", Timezone: "UTC", TickInterval: time.Minute, SweepInterval: time.Minute, TriggerTolerance: 30 * time.Second, ActionWindow: 2 * time.Hour}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestResolveDefaults_RejectsPostgresWithoutDSN(t *testing.T) {
	cfg := &Config{DBDriver: "postgres", Timezone: "UTC", TickInterval: time.Minute, SweepInterval: time.Minute, TriggerTolerance: 30 * time.Second, ActionWindow: 2 * time.Hour}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}
}

func TestResolveDefaults_RejectsBadTimezone(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite", Timezone: "Mars/Olympus", TickInterval: time.Minute, SweepInterval: time.Minute, TriggerTolerance: 30 * time.Second, ActionWindow: 2 * time.Hour}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestResolveDefaults_RejectsWideTolerance(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite", Timezone: "UTC", TickInterval: time.Minute, SweepInterval: time.Minute, TriggerTolerance: 45 * time.Second, ActionWindow: 2 * time.Hour}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error when tolerance can double-fire across ticks")
	}
}
