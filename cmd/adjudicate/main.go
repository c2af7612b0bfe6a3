// Command adjudicate runs the engine on a game state file without a
// server. It can create a new game or close the current phase of one.
//
//	adjudicate -new florence=alice,milan=bob > game.json
//	adjudicate -seed 7 -force < game.json > next.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

type options struct {
	scenario  string
	players   string
	in        string
	seed      int64
	now       string
	force     bool
	timeLimit time.Duration
	finances  bool
}

// report is what adjudicate prints after closing a phase.
type report struct {
	Outcome string                 `json:"outcome"`
	Log     []string               `json:"log,omitempty"`
	Events  []machiavelli.Event    `json:"events,omitempty"`
	State   *machiavelli.GameState `json:"state"`
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var opts options
	flag.StringVar(&opts.scenario, "scenario", "", "Scenario YAML file (default: embedded Italy 1454)")
	flag.StringVar(&opts.players, "new", "", "Create a game seating country=user pairs, e.g. florence=alice,milan=bob")
	flag.StringVar(&opts.in, "in", "-", "Game state JSON file, - for stdin")
	flag.Int64Var(&opts.seed, "seed", 0, "Dice seed (0 = time based)")
	flag.StringVar(&opts.now, "now", "", "Current time as RFC 3339 (default: now)")
	flag.BoolVar(&opts.force, "force", false, "Process the phase even if players are not done")
	flag.DurationVar(&opts.timeLimit, "time-limit", 24*time.Hour, "Phase time limit for new games")
	flag.BoolVar(&opts.finances, "finances", false, "Enable finances for new games")
	flag.Parse()

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("adjudicate failed")
	}
}

func run(opts options, stdin io.Reader, stdout io.Writer) error {
	sc, err := scenario(opts.scenario)
	if err != nil {
		return err
	}
	now := time.Now()
	if opts.now != "" {
		if now, err = time.Parse(time.RFC3339, opts.now); err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
	}
	seed := opts.seed
	if seed == 0 {
		seed = now.UnixNano()
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if opts.players != "" {
		players, err := parsePlayers(opts.players)
		if err != nil {
			return err
		}
		gs, err := machiavelli.NewGame(sc, machiavelli.Configuration{Finances: opts.finances}, players,
			machiavelli.GameOptions{TimeLimit: opts.timeLimit, Seed: seed}, now)
		if err != nil {
			return fmt.Errorf("new game: %w", err)
		}
		log.Info().Int("players", len(players)).Int("units", len(gs.Units)).Msg("Game created")
		return enc.Encode(gs)
	}

	in := stdin
	if opts.in != "-" {
		f, err := os.Open(opts.in)
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		defer f.Close()
		in = f
	}
	var gs machiavelli.GameState
	if err := json.NewDecoder(in).Decode(&gs); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	dice := machiavelli.NewDice(seed)
	var (
		outcome machiavelli.Outcome
		res     *machiavelli.TurnResult
	)
	if opts.force {
		res, err = machiavelli.ProcessTurn(&gs, sc, dice, now)
		outcome = machiavelli.OutcomeProcessed
		if err == nil && res.Finished {
			outcome = machiavelli.OutcomeFinished
		}
	} else {
		outcome, res, err = machiavelli.CheckFinishedPhase(&gs, sc, now, dice)
	}
	if err != nil {
		return err
	}
	log.Info().Str("outcome", outcome.String()).Int64("seed", seed).
		Str("phase", gs.Phase.String()).Str("season", gs.Season.String()).Int("year", gs.Year).
		Msg("Phase checked")

	out := report{Outcome: outcome.String(), State: &gs}
	if res != nil {
		out.Log = res.Log
		out.Events = res.Events
	}
	return enc.Encode(out)
}

func scenario(path string) (*machiavelli.Scenario, error) {
	if path == "" {
		return machiavelli.DefaultScenario()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return machiavelli.LoadScenario(f)
}

func parsePlayers(s string) (map[string]string, error) {
	players := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		country, user, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || country == "" || user == "" {
			return nil, fmt.Errorf("bad player %q, want country=user", pair)
		}
		if _, dup := players[country]; dup {
			return nil, fmt.Errorf("country %s seated twice", country)
		}
		players[country] = user
	}
	if len(players) == 0 {
		return nil, errors.New("no players")
	}
	return players, nil
}
