package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"galaxy/lib/balance"
	"galaxy/lib/combat"
	"galaxy/lib/config"
)

func main() {
	var (
		mode        string
		catalogPath string
		composition string
		levels      string
		trials      int
		workers     int
		budget      int
		seed        int64
		roundCap    int
		jsonOutput  bool
	)
	flag.StringVar(&mode, "mode", "matrix", "matrix or curve")
	flag.StringVar(&catalogPath, "catalog", os.Getenv("CATALOG_PATH"), "YAML ship catalog (default: built-in)")
	flag.StringVar(&composition, "fleet", "fighter=10", "fleet used by the experience curve, e.g. fighter=10,corvette=2")
	flag.StringVar(&levels, "levels", "0,25,50,75,100", "experience levels of the curve")
	flag.IntVar(&trials, "trials", 1000, "battles per matchup")
	flag.IntVar(&workers, "workers", 0, "parallel battles (0 = number of CPUs)")
	flag.IntVar(&budget, "budget", 2500, "fleet budget of the ship matrix")
	flag.Int64Var(&seed, "seed", 0, "seed of the first trial")
	flag.IntVar(&roundCap, "round-cap", combat.DefaultRoundCap, "round cap")
	flag.BoolVar(&jsonOutput, "json", false, "output JSON")
	flag.Parse()

	if err := run(mode, catalogPath, composition, levels, trials, workers, budget, seed, roundCap, jsonOutput); err != nil {
		slog.Error("balance run failed", "err", err)
		os.Exit(1)
	}
}

func run(mode, catalogPath, composition, levels string, trials, workers, budget int, seed int64, roundCap int, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	catalog, err := config.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}

	harness := balance.NewHarness(combat.NewEngine(catalog), trials)
	harness.BaseSeed = seed
	harness.RoundCap = roundCap
	if workers > 0 {
		harness.Workers = workers
	}

	switch mode {
	case "matrix":
		matrix, err := harness.ShipMatrix(ctx, budget)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(matrix)
		}
		return balance.WriteMatrix(os.Stdout, matrix)
	case "curve":
		fleet, err := parseComposition(composition)
		if err != nil {
			return err
		}
		experience, err := parseLevels(levels)
		if err != nil {
			return err
		}
		curve, err := harness.ExperienceCurve(ctx, fleet, experience)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(curve)
		}
		return balance.WriteCurve(os.Stdout, curve)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func parseComposition(value string) (map[string]int, error) {
	composition := map[string]int{}
	for _, part := range strings.Split(value, ",") {
		name, count, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("invalid fleet entry %q", part)
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return nil, fmt.Errorf("invalid count for %s: %w", name, err)
		}
		composition[strings.ToLower(name)] += n
	}
	return composition, nil
}

func parseLevels(value string) ([]int, error) {
	var levels []int
	for _, part := range strings.Split(value, ",") {
		level, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid experience level %q: %w", part, err)
		}
		levels = append(levels, level)
	}
	return levels, nil
}
