package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/combat"
	configpkg "autobattler/arbiter/internal/config"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/logging"
)

func testConfig(t *testing.T) *configpkg.Config {
	t.Helper()
	dir := t.TempDir()
	return &configpkg.Config{
		HTTPAddress:         "127.0.0.1:0",
		GRPCAddress:         "127.0.0.1:0",
		MaxPayloadBytes:     configpkg.DefaultMaxPayloadBytes,
		PingInterval:        configpkg.DefaultPingInterval,
		RateLimitWindow:     configpkg.DefaultRateLimitWindow,
		RateLimitBurst:      configpkg.DefaultRateLimitBurst,
		Policy:              "sanitize",
		AttackPriority:      "lowest_hp",
		MaxAttacksPerUnit:   configpkg.DefaultMaxAttacksPerUnit,
		MaxTotalAttacks:     configpkg.DefaultMaxTotalAttacks,
		Workers:             2,
		BatchLimit:          configpkg.DefaultBatchLimit,
		ReplayDir:           filepath.Join(dir, "replays"),
		ReplayMaxBundles:    10,
		ReplayMaxAge:        time.Hour,
		ReplayCleanInterval: time.Minute,
		StorePath:           filepath.Join(dir, "arbiter.db"),
	}
}

func TestCombatOptionsFollowConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxTotalAttacks = 64
	opts := combatOptions(cfg)
	if opts.Policy != combat.PolicySanitize || opts.AttackPriority != board.PriorityLowestHP {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Limits.MaxTotalAttacks != 64 || opts.Limits.MaxAttacksPerUnit != configpkg.DefaultMaxAttacksPerUnit {
		t.Fatalf("unexpected limits %+v", opts.Limits)
	}
}

func TestBuildComponentsServesSimulations(t *testing.T) {
	cfg := testConfig(t)
	built, err := buildComponents(cfg, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("buildComponents: %v", err)
	}
	defer built.Close()
	if built.store == nil || built.cleaner == nil {
		t.Fatalf("expected store and cleaner to be wired")
	}

	b1, b2 := board.EmptyBoard(), board.EmptyBoard()
	b1.Top[0] = &board.Unit{ID: "squire"}
	b2.Top[0] = &board.Unit{ID: "scout"}
	body, _ := json.Marshal(input.Combat{Board1: &b1, Board2: &b2, Round: 1, Seed: input.SeedFrom(99), Meta: input.Meta{MatchID: "wired"}})

	server := httptest.NewServer(built.http.Router())
	defer server.Close()
	resp, err := http.Post(server.URL+"/v1/simulate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var result combat.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := built.service.Lookup(context.Background(), result.ResultHash); err != nil {
		t.Fatalf("commitment not stored: %v", err)
	}
	built.cleaner.RunOnce()
	if stats := built.cleaner.Stats(); stats.Bundles != 1 {
		t.Fatalf("expected one retained bundle, got %+v", stats)
	}
}

func TestBuildComponentsRejectsMissingRoster(t *testing.T) {
	cfg := testConfig(t)
	cfg.RosterPath = filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := buildComponents(cfg, logging.NewTestLogger()); err == nil {
		t.Fatal("expected missing roster to fail")
	}
	if _, err := os.Stat(cfg.StorePath); !os.IsNotExist(err) {
		t.Fatalf("store should not be opened when the roster fails: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logging.NewTestLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(shutdownGrace + time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}
