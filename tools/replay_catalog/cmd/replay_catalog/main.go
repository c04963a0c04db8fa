package main

import (
	"flag"
	"fmt"
	"os"

	replaycatalog "autobattler/arbiter/tools/replay_catalog"
)

func main() {
	root := flag.String("dir", ".", "directory containing replay bundles")
	match := flag.String("match", "", "only list bundles for this correlation id")
	hash := flag.String("hash", "", "only list bundles committing to this result hash")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := replaycatalog.List(*root, replaycatalog.Filter{CorrelationID: *match, ResultHash: *hash})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := replaycatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		h := entry.Header
		fmt.Printf("%s round %d (schema %d)\n", h.CorrelationID, h.Round, h.SchemaVersion)
		fmt.Printf("  hash: %s\n", h.ResultHash)
		fmt.Printf("  winner: %s damage: %d termination: %s\n", h.Winner, h.DamageToLoser, h.Termination)
		fmt.Printf("  steps: %d rng calls: %d seed: %d\n", h.TotalSteps, h.RNGCallCount, h.Seed)
		fmt.Printf("  manifest: %s\n", entry.ManifestPath)
	}
}
