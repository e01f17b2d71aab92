// Command balance splits a roster file into rating-balanced teams without
// the bot. The roster is either a YAML list of {name, rating} or the bulk
// "name:rating, name:rating" text the bot accepts.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mkwab/internal/logging"
	"mkwab/internal/logic"
	"mkwab/internal/messages"
	"mkwab/internal/roster"
)

var errUsage = errors.New("usage: balance [-teams 2,3,4] [-passes N] [-json] <roster file | ->")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	fs.SetOutput(stderr)
	teamsFlag := fs.String("teams", "2", "comma separated team counts")
	passes := fs.Int("passes", logic.DefaultMaxPasses, "refinement pass cap")
	asJSON := fs.Bool("json", false, "print results as JSON")
	level := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	log, err := logging.New(*level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ks, err := parseTeams(*teamsFlag)
	if err != nil {
		return err
	}
	entries, err := readRoster(fs.Arg(0), stdin)
	if err != nil {
		return err
	}
	players := make([]logic.Player, len(entries))
	for i, e := range entries {
		players[i] = logic.Player{Name: e.Name, Rating: e.Rating}
	}
	log.Debug("roster loaded", zap.Int("players", len(players)), zap.Ints("teams", ks))

	results := make(map[int]logic.Result, len(ks))
	for _, k := range ks {
		start := time.Now()
		res, err := logic.Balance(players, k, logic.WithMaxPasses(*passes))
		if err != nil {
			return fmt.Errorf("%d teams: %w", k, err)
		}
		log.Debug("balanced",
			zap.Int("teams", k),
			zap.Int("seed_spread", res.SeedSpread),
			zap.Int("spread", *res.Spread),
			zap.Int("swaps", res.Swaps),
			zap.Duration("took", time.Since(start)))
		results[k] = res
	}

	if *asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, k := range ks {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintln(stdout, messages.Result(k, results[k]))
	}
	return nil
}

func parseTeams(s string) ([]int, error) {
	var ks []int
	for _, f := range strings.Split(s, ",") {
		k, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || k < 1 {
			return nil, fmt.Errorf("bad team count %q", f)
		}
		ks = append(ks, k)
	}
	return ks, nil
}

func readRoster(path string, stdin io.Reader) ([]roster.Entry, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var entries []roster.Entry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for i, e := range entries {
			if err := e.Validate(); err != nil {
				return nil, fmt.Errorf("%s: entry %d: %w", path, i+1, err)
			}
		}
		return entries, nil
	default:
		entries, problems := roster.Parse(string(data))
		if len(problems) > 0 {
			return nil, fmt.Errorf("%s: %w", path, problems[0])
		}
		return entries, nil
	}
}
