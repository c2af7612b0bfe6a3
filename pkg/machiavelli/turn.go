package machiavelli

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// turn carries the state of one processing step: the game being mutated,
// the dice it may consult, and the log and events it produces.
type turn struct {
	gs     *GameState
	sc     *Scenario
	b      *Board
	dice   Dice
	log    []string
	events []Event
}

func newTurn(gs *GameState, sc *Scenario, dice Dice) *turn {
	return &turn{gs: gs, sc: sc, b: sc.Board, dice: dice}
}

func (t *turn) logf(format string, args ...interface{}) {
	t.log = append(t.log, fmt.Sprintf(format, args...))
}

func (t *turn) emit(e Event) {
	t.events = append(t.events, e)
}

func (t *turn) invadeArea(u *Unit, area string) {
	t.logf("%s - %s: invades", u.Describe(), area)
	u.Area = area
	u.MustRetreat = ""
	t.checkRebellion(u)
}

func (t *turn) convert(u *Unit, typ UnitType) {
	t.logf("%s = %s: converts", u.Describe(), string(typ))
	u.Type = typ
	u.MustRetreat = ""
	if typ != Garrison {
		t.checkRebellion(u)
	}
}

func (t *turn) result() *TurnResult {
	return &TurnResult{
		Events:   t.events,
		Log:      t.log,
		Finished: t.gs.Finished,
		Winner:   t.gs.Winner,
		Phase:    t.gs.Phase,
		Season:   t.gs.Season,
		Year:     t.gs.Year,
	}
}

// TurnResult is what a processed phase produced.
type TurnResult struct {
	Events   []Event
	Log      []string
	Finished bool
	Winner   string
	Phase    Phase
	Season   Season
	Year     int
}

// GameOptions are the per-game settings chosen at creation.
type GameOptions struct {
	CitiesToWin int
	TimeLimit   time.Duration
	Teams       int
	UsesKarma   bool
	Private     bool
	Seed        int64 // team assignment
}

// DefaultKarma is the karma a player starts with when the caller has no
// better value.
const DefaultKarma = 100

// NewGame starts a game of the scenario. players maps country keys to user
// ids; countries nobody plays are left out of the game.
func NewGame(sc *Scenario, cfg Configuration, players map[string]string, opts GameOptions, now time.Time) (*GameState, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("no players: %w", ErrNotAllowed)
	}
	cfg = cfg.Normalize()
	gs := &GameState{
		Scenario:  sc.Name,
		Year:      sc.StartYear,
		Season:    Spring,
		Phase:     PhaseOrders,
		Config:    cfg,
		TimeLimit: opts.TimeLimit,
		UsesKarma: opts.UsesKarma && opts.Teams <= 1,
		Private:   opts.Private,
		Teams:     opts.Teams,
		Players:   make(map[string]*Player),
		Areas:     make(map[string]*GameArea),
		Loans:     make(map[string]*Loan),
	}
	gs.CitiesToWin = opts.CitiesToWin
	if gs.CitiesToWin == 0 {
		gs.CitiesToWin = sc.CitiesToWin
	}
	if gs.CitiesToWin == ShortGameCities {
		gs.RequireHomeCities = true
		gs.ExtraConqueredCities = 6
	}
	for _, code := range sc.Board.Codes() {
		gs.Areas[code] = &GameArea{Code: code}
	}
	if cfg.TradeRoutes {
		for _, r := range sc.Routes {
			gs.Routes = append(gs.Routes, &Route{
				Name:  r.Name,
				Areas: append([]string(nil), r.Areas...),
				Ends:  append([]string(nil), r.Ends...),
			})
		}
	}

	keys := make([]string, 0, len(players))
	for key := range players {
		if sc.Country(key) == nil {
			return nil, fmt.Errorf("country %s: %w", key, ErrUnknownPlayer)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		c := sc.Country(key)
		p := &Player{
			ID:       key,
			UserID:   players[key],
			Religion: c.Religion,
			Karma:    DefaultKarma,
		}
		if cfg.Excommunication {
			p.MayExcommunicate = c.MayExcommunicate
		}
		if cfg.Finances {
			p.DoubleIncome = c.DoubleIncome
			p.Ducats = c.Ducats
		}
		gs.Players[key] = p
		for _, code := range c.Home {
			ga := gs.Areas[code]
			ga.Player = key
			ga.HomeOf = key
		}
		for _, s := range c.Setup {
			gs.newUnit(s.Type, key, s.Area)
		}
	}
	if opts.Teams > 1 {
		makeTeams(gs, opts.Teams, opts.Seed)
	}
	gs.Players[AutonomousPlayer] = &Player{ID: AutonomousPlayer, Done: true}
	for _, s := range sc.Autonomous {
		gs.newUnit(s.Type, AutonomousPlayer, s.Area)
	}
	if cfg.Assassinations {
		for _, owner := range keys {
			for _, target := range keys {
				if owner != target {
					gs.Assassins = append(gs.Assassins, Assassin{Owner: owner, Target: target})
				}
			}
		}
	}
	for _, r := range gs.Routes {
		gs.updateRouteStatus(r)
	}
	gs.LastPhaseChange = now
	return gs, nil
}

func makeTeams(gs *GameState, teams int, seed int64) {
	ids := make([]string, 0, len(gs.Players))
	for _, p := range gs.UserPlayers() {
		ids = append(ids, p.ID)
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	size := len(ids) / teams
	if size == 0 {
		size = 1
	}
	for i, id := range ids {
		team := i/size + 1
		if team > teams {
			team = teams
		}
		gs.Players[id].Team = team
	}
}

// ProcessTurn runs the processing step of the current phase and moves the
// game to the next one. The work is done on a copy that replaces gs only on
// success; an *InvariantError leaves gs exactly as it was.
func ProcessTurn(gs *GameState, sc *Scenario, dice Dice, now time.Time) (*TurnResult, error) {
	next := gs.Clone()
	t := newTurn(next, sc, dice)
	if err := t.process(now); err != nil {
		return nil, err
	}
	*gs = *next
	return t.result(), nil
}

func (t *turn) process(now time.Time) error {
	gs := t.gs
	if gs.Finished {
		return ErrGameFinished
	}
	var next Phase
	endSeason := false
	switch gs.Phase {
	case PhaseReinforce:
		t.autoReinforcements()
		t.adjustUnits()
		next = PhaseOrders
	case PhaseOrders:
		if gs.Config.Lenders {
			t.checkLoans()
		}
		if gs.Config.Finances {
			t.processExpenses()
		}
		if gs.Config.Taxation {
			for _, code := range gs.areaCodes() {
				if ga := gs.Areas[code]; ga.Taxed && ga.Famine {
					t.checkAssassinationRebellion(code, t.b.Area(code).ControlIncome-1)
				}
			}
		}
		if gs.Config.Assassinations {
			t.processAssassinations()
		}
		if gs.Config.Assassinations || gs.Config.Lenders {
			t.cancelAssassinatedOrders()
		}
		t.processOrders()
		switch {
		case t.pendingRetreats():
			next = PhaseRetreats
		case gs.Config.Strategic:
			next = PhaseStrategic
		default:
			endSeason = true
		}
	case PhaseRetreats:
		t.processRetreats()
		if gs.Config.Strategic {
			next = PhaseStrategic
		} else {
			endSeason = true
		}
	case PhaseStrategic:
		t.processStrategicMovements()
		endSeason = true
	default:
		return ErrWrongPhase
	}
	if endSeason {
		over, err := t.endSeason(now)
		if err != nil {
			return err
		}
		if over {
			return nil
		}
		next = t.seasonStartPhase()
	}
	gs.Phase = next
	gs.LastPhaseChange = now
	gs.ExtendedDeadline = false
	if endSeason && gs.Config.FogOfWar {
		t.uncoverDiplomats()
	}
	t.logf("new phase: %s %s %d", gs.Phase, gs.Season, gs.Year)
	t.emit(Event{Kind: EventNewPhase})
	t.newPhase()
	return nil
}

func (t *turn) pendingRetreats() bool {
	for _, u := range t.gs.Units {
		if u.MustRetreat != "" {
			return true
		}
	}
	return false
}

// endSeason applies the season boundary rules. It reports whether the game
// is over.
func (t *turn) endSeason(now time.Time) (bool, error) {
	gs := t.gs
	t.deleteRepressedRebellions()
	switch gs.Season {
	case Spring:
		if gs.Config.Famine {
			t.killUnits(func(ga *GameArea) bool { return ga.Famine }, "famine")
			for _, ga := range gs.Areas {
				ga.Famine = false
			}
		}
		if gs.Config.Plague {
			t.killPlagueUnits()
		}
	case Summer:
		if gs.Config.Storms {
			t.markAreas(&StormTable, EventStorm, func(ga *GameArea) { ga.Storm = true })
		}
	case Fall:
		if gs.Config.Storms {
			t.killUnits(func(ga *GameArea) bool { return ga.Storm }, "storm")
			for _, ga := range gs.Areas {
				ga.Storm = false
			}
		}
		var eliminated []*Player
		for _, p := range gs.ActivePlayers() {
			if CheckEliminated(gs, p.ID) {
				eliminated = append(eliminated, p)
			}
		}
		for _, p := range eliminated {
			t.eliminate(p)
		}
		if err := t.updateControls(); err != nil {
			return false, err
		}
		if gs.Config.Conquering {
			t.checkConquerings()
		}
		if winner, team := checkWinner(gs, t.sc); winner != "" || team > 0 {
			if team > 0 {
				gs.Scores = assignTeamScores(gs, t.sc)
				gs.Winner = fmt.Sprintf("team %d", team)
			} else {
				gs.Scores = assignScores(gs, t.sc)
				gs.Winner = winner
			}
			t.gameOver(now)
			return true, nil
		}
		if gs.Config.Famine {
			t.markAreas(&FamineTable, EventFamine, func(ga *GameArea) { ga.Famine = true })
		}
	}
	if gs.Config.Taxation {
		for _, code := range gs.areaCodes() {
			ga := gs.Areas[code]
			if ga.Taxed {
				ga.Famine = true
				ga.Taxed = false
				t.emit(Event{Kind: EventFamine, Area: code})
			}
		}
	}
	if gs.Config.TradeRoutes {
		for _, r := range gs.Routes {
			gs.updateRouteStatus(r)
		}
	}
	if gs.Season == Fall && gs.Config.Finances {
		t.assignIncomes()
	}
	for _, p := range gs.Players {
		p.Assassinated = false
		p.HasSentenced = false
	}
	t.nextSeason()
	return false, nil
}

func (t *turn) nextSeason() {
	gs := t.gs
	if gs.Season == Fall {
		gs.Season = Spring
		gs.Year++
	} else {
		gs.Season++
	}
	for _, u := range gs.Units {
		u.MustRetreat = ""
	}
	for _, ga := range gs.Areas {
		ga.Standoff = false
	}
	gs.RetreatOrders = nil
	gs.StrategicOrders = nil
}

// seasonStartPhase decides the first phase of the new season. Spring opens
// with reinforcements under finances, or when someone must change the size
// of their army.
func (t *turn) seasonStartPhase() Phase {
	gs := t.gs
	if gs.Season != Spring {
		return PhaseOrders
	}
	if gs.Config.Finances {
		for _, u := range gs.UnitsOf(AutonomousPlayer) {
			u.Paid = true
		}
		return PhaseReinforce
	}
	for _, u := range gs.Units {
		u.Paid = true
	}
	for _, id := range gs.PlayerIDs() {
		if UnitsToPlace(gs, t.sc, id) != 0 {
			return PhaseReinforce
		}
	}
	return PhaseOrders
}

func (t *turn) killUnits(struck func(*GameArea) bool, reason string) {
	for _, u := range append([]*Unit(nil), t.gs.Units...) {
		if struck(t.gs.Areas[u.Area]) {
			t.disband(u, reason)
		}
	}
}

func (t *turn) killPlagueUnits() {
	for _, code := range dedupe(PlagueTable.Roll(t.dice)) {
		if t.gs.Area(code) == nil {
			continue
		}
		t.logf("plague in %s", code)
		t.emit(Event{Kind: EventPlague, Area: code})
		for _, u := range t.gs.UnitsIn(code) {
			t.disband(u, "plague")
		}
	}
}

func (t *turn) markAreas(table *DisasterTable, kind EventKind, mark func(*GameArea)) {
	for _, code := range dedupe(table.Roll(t.dice)) {
		ga := t.gs.Area(code)
		if ga == nil {
			continue
		}
		mark(ga)
		t.logf("%s in %s", kind, code)
		t.emit(Event{Kind: kind, Area: code})
	}
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	var out []string
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func (t *turn) gameOver(now time.Time) {
	gs := t.gs
	gs.Phase = PhaseInactive
	gs.Finished = true
	gs.LastPhaseChange = now
	t.logf("game over, winner %s", gs.Winner)
	t.emit(Event{Kind: EventGameOver, Player: gs.Winner})
}

// newPhase sets the done flag of every seat for the phase that just began.
// Players with nothing to do are done at once.
func (t *turn) newPhase() {
	gs := t.gs
	for _, p := range gs.UserPlayers() {
		p.Forced = false
		if p.Eliminated || p.Surrendered {
			continue
		}
		switch gs.Phase {
		case PhaseReinforce:
			p.Done = !gs.Config.Finances && UnitsToPlace(gs, t.sc, p.ID) == 0
		case PhaseRetreats:
			p.Done = true
			for _, u := range gs.UnitsOf(p.ID) {
				if u.MustRetreat != "" {
					p.Done = false
				}
			}
		case PhaseStrategic:
			p.Done = true
			for _, u := range gs.UnitsOf(p.ID) {
				if u.Type != Garrison {
					p.Done = false
				}
			}
		default:
			p.Done = false
		}
	}
}

// EndPhase marks a player done. A player that ends the phase on its own
// closes any revolution opened against it.
func EndPhase(gs *GameState, player string, forced bool) {
	p := gs.Player(player)
	if p == nil {
		return
	}
	p.Done = true
	p.Step = 0
	p.Forced = forced
	if !forced {
		gs.closeRevolution(p)
	}
}

func allDone(gs *GameState) bool {
	for _, p := range gs.UserPlayers() {
		if !p.Eliminated && !p.Done {
			return false
		}
	}
	return true
}

// Outcome tells what CheckFinishedPhase did.
type Outcome int

const (
	OutcomeNotReady Outcome = iota
	OutcomeForced
	OutcomeProcessed
	OutcomeFinished
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeForced:
		return "forced"
	case OutcomeProcessed:
		return "processed"
	case OutcomeFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// CheckFinishedPhase closes the phase when every player is done. Past the
// deadline, late players first get an extended deadline and a revolution
// against them; past the extended deadline they are forced to finish. gs is
// left untouched when nothing changes or the turn fails.
func CheckFinishedPhase(gs *GameState, sc *Scenario, now time.Time, dice Dice) (Outcome, *TurnResult, error) {
	if gs.Finished {
		return OutcomeNotReady, nil, ErrGameFinished
	}
	if gs.Phase == PhaseInactive {
		return OutcomeNotReady, nil, ErrWrongPhase
	}
	next := gs.Clone()
	t := newTurn(next, sc, dice)
	forced := false
	if TimeExceeded(next, now) {
		t.forcePhaseChange(now)
		forced = true
	}
	if !allDone(next) {
		if !forced {
			return OutcomeNotReady, nil, nil
		}
		*gs = *next
		return OutcomeForced, t.result(), nil
	}
	if err := t.process(now); err != nil {
		return OutcomeNotReady, nil, fmt.Errorf("process %s %s %d: %w", gs.Phase, gs.Season, gs.Year, err)
	}
	*gs = *next
	if next.Finished {
		return OutcomeFinished, t.result(), nil
	}
	return OutcomeProcessed, t.result(), nil
}
