package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/combat"
	replayverify "autobattler/arbiter/tools/replay_verify"
)

func main() {
	path := flag.String("path", "", "Path to a replay bundle directory or its manifest.json")
	priority := flag.String("priority", "", "Default attack priority the bundle was simulated with")
	perUnit := flag.Int("max-attacks-per-unit", 0, "Per-unit attack ceiling override")
	total := flag.Int("max-total-attacks", 0, "Total attack ceiling override")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	report, err := replayverify.VerifyBundle(*path, replayverify.Options{
		AttackPriority: board.Priority(*priority),
		Limits:         combat.Limits{MaxAttacksPerUnit: *perUnit, MaxTotalAttacks: *total},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	//1.- Render the report as JSON so callers can pipe the output elsewhere.
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(2)
	}
	if !report.Match {
		os.Exit(3)
	}
}
