package machiavelli

import (
	"fmt"
	"time"
)

// Diplomat is an agent a player keeps in an area.
type Diplomat struct {
	Player string
	Area   string
}

func (t *turn) placeDiplomat(player, area string) {
	gs := t.gs
	if a := t.b.Area(area); a == nil || a.IsSea {
		return
	}
	for _, d := range gs.Diplomats {
		if d.Player == player && d.Area == area {
			return
		}
	}
	gs.Diplomats = append(gs.Diplomats, Diplomat{Player: player, Area: area})
	t.logf("%s hires a diplomat in %s", player, area)
}

// PlaceDiplomat records a diplomat expense, choosing the own or foreign
// price from the area's controller.
func PlaceDiplomat(gs *GameState, sc *Scenario, player, area string, ducats int) (*Expense, error) {
	ga := gs.Area(area)
	if ga == nil {
		return nil, ErrUnknownArea
	}
	typ := ExpenseDiplomatForeign
	if ga.Player == player {
		typ = ExpenseDiplomatOwn
	}
	if ducats == 0 {
		ducats = expenseCost[typ]
	}
	return AddExpense(gs, sc, Expense{Player: player, Type: typ, Area: area, Ducats: ducats})
}

// uncoverDiplomats rolls for each diplomat. A diplomat outside its
// player's territory is caught unless the die is high enough.
func (t *turn) uncoverDiplomats() {
	gs := t.gs
	var kept []Diplomat
	for _, d := range gs.Diplomats {
		die := t.dice.Roll1d6()
		owner := gs.Area(d.Area).Player
		safe := owner == d.Player ||
			(owner == "" && die >= 3) ||
			(owner != "" && die >= 4)
		if safe {
			kept = append(kept, d)
			continue
		}
		t.logf("diplomat of %s uncovered in %s", d.Player, d.Area)
		t.emit(Event{Kind: EventDiplomatUncovered, Player: d.Player, Area: d.Area})
	}
	gs.Diplomats = kept
}

// Route is a trade route. Ends are the areas whose controllers trade.
type Route struct {
	Name  string
	Areas []string
	Ends  []string
	Safe  bool
}

func (gs *GameState) routeTraders(r *Route) []string {
	var out []string
	for _, code := range r.Ends {
		if ga := gs.Area(code); ga != nil && ga.Player != "" {
			out = append(out, ga.Player)
		}
	}
	return out
}

// updateRouteStatus marks the route unsafe when a unit of a non-trading user
// player sits on it.
func (gs *GameState) updateRouteStatus(r *Route) {
	traders := make(map[string]bool)
	for _, p := range gs.routeTraders(r) {
		traders[p] = true
	}
	r.Safe = true
	for _, code := range r.Areas {
		for _, u := range gs.UnitsIn(code) {
			if u.Player != AutonomousPlayer && !traders[u.Player] {
				r.Safe = false
				return
			}
		}
	}
}

func tradeIncome(gs *GameState, player string) int {
	n := 0
	for _, r := range gs.Routes {
		if !r.Safe {
			continue
		}
		for _, p := range gs.routeTraders(r) {
			if p == player {
				n++
			}
		}
	}
	return n
}

func (p *Player) canSentence(gs *GameState) bool {
	return !p.Eliminated && gs.Config.Excommunication && p.MayExcommunicate && !p.HasSentenced
}

// Excommunicate lets the pope excommunicate a player. Only one player may
// be excommunicated by the pope at a time.
func Excommunicate(gs *GameState, pope, target string) error {
	if !gs.Config.Excommunication {
		return ErrRuleDisabled
	}
	p := gs.Player(pope)
	v := gs.Player(target)
	if p == nil || v == nil || v.IsAutonomous() {
		return ErrUnknownPlayer
	}
	if !p.canSentence(gs) {
		return fmt.Errorf("%s cannot excommunicate now: %w", pope, ErrNotAllowed)
	}
	for _, other := range gs.Players {
		if other.PopeExcommunicated {
			return fmt.Errorf("%s is already excommunicated: %w", other.ID, ErrNotAllowed)
		}
	}
	if v.Eliminated || v.Conqueror != "" || v.MayExcommunicate {
		return fmt.Errorf("%s cannot be excommunicated: %w", target, ErrNotAllowed)
	}
	v.IsExcommunicated = true
	v.PopeExcommunicated = true
	p.HasSentenced = true
	return nil
}

// Forgive lifts the excommunication of a player.
func Forgive(gs *GameState, pope, target string) error {
	if !gs.Config.Excommunication {
		return ErrRuleDisabled
	}
	p := gs.Player(pope)
	v := gs.Player(target)
	if p == nil || v == nil {
		return ErrUnknownPlayer
	}
	if !p.canSentence(gs) {
		return fmt.Errorf("%s cannot forgive now: %w", pope, ErrNotAllowed)
	}
	if !v.IsExcommunicated {
		return fmt.Errorf("%s is not excommunicated: %w", target, ErrNotAllowed)
	}
	v.IsExcommunicated = false
	v.PopeExcommunicated = false
	p.HasSentenced = true
	return nil
}

// KarmaToRevolution is the karma under which a late player's seat is
// opened to a revolution.
const KarmaToRevolution = 170

// Revolution offers the seat of an idle or surrendered government to an
// opposition user.
type Revolution struct {
	Country    string
	Government string // user id of the player in the seat
	Opposition string // user id of the challenger
	Active     *time.Time
	Overthrow  bool
	Voluntary  bool
}

func (gs *GameState) revolutionFor(government string) *Revolution {
	for _, r := range gs.Revolutions {
		if r.Government == government && !r.Overthrow {
			return r
		}
	}
	return nil
}

// checkRevolution punishes a player who missed the deadline and opens a
// revolution in public games.
func (t *turn) checkRevolution(p *Player, now time.Time) {
	gs := t.gs
	if gs.UsesKarma {
		p.Karma -= 10
		t.emit(Event{Kind: EventKarmaChanged, Player: p.ID, Target: p.UserID, Value: -10})
	}
	if gs.Private || p.Karma >= KarmaToRevolution {
		return
	}
	rev := gs.revolutionFor(p.UserID)
	active := now
	if rev == nil {
		rev = &Revolution{Country: p.ID, Government: p.UserID}
		gs.Revolutions = append(gs.Revolutions, rev)
		rev.Active = &active
		t.logf("revolution starts against %s", p.ID)
		t.emit(Event{Kind: EventRevolutionStarted, Player: p.ID})
		return
	}
	rev.Active = &active
	if rev.Opposition != "" {
		t.resolveRevolution(rev)
	}
}

func (t *turn) resolveRevolution(rev *Revolution) {
	gs := t.gs
	p := gs.Player(rev.Country)
	if p == nil {
		return
	}
	t.logf("government of %s overthrown", p.ID)
	t.emit(Event{Kind: EventGovernmentOverthrown, Player: p.ID, Target: rev.Opposition})
	p.UserID = rev.Opposition
	if rev.Voluntary {
		p.Surrendered = false
	}
	if gs.UsesKarma {
		t.emit(Event{Kind: EventKarmaChanged, Player: p.ID, Target: rev.Opposition, Value: 10})
	}
	rev.Active = nil
	rev.Overthrow = true
}

func (gs *GameState) closeRevolution(p *Player) {
	if rev := gs.revolutionFor(p.UserID); rev != nil && rev.Active != nil {
		rev.Active = nil
	}
}

// Surrender gives up the seat. The player is done from now on and the seat
// is open to a voluntary revolution.
func Surrender(gs *GameState, player string, now time.Time) error {
	p := gs.Player(player)
	if p == nil || p.IsAutonomous() {
		return ErrUnknownPlayer
	}
	if p.Eliminated || p.Surrendered {
		return fmt.Errorf("%s cannot surrender: %w", player, ErrNotAllowed)
	}
	p.Surrendered = true
	p.Done = true
	rev := gs.revolutionFor(p.UserID)
	if rev == nil {
		rev = &Revolution{Country: p.ID, Government: p.UserID}
		gs.Revolutions = append(gs.Revolutions, rev)
	}
	active := now
	rev.Active = &active
	rev.Voluntary = true
	return nil
}

// Overthrow registers user as the opposition of an active revolution.
// Voluntary revolutions are resolved at once and their events returned.
func Overthrow(gs *GameState, user, country string) ([]Event, error) {
	for _, p := range gs.Players {
		if p.UserID == user {
			return nil, fmt.Errorf("user already plays this game: %w", ErrNotAllowed)
		}
	}
	for _, r := range gs.Revolutions {
		if r.Opposition == user && !r.Overthrow {
			return nil, fmt.Errorf("user already supports a revolution: %w", ErrNotAllowed)
		}
	}
	p := gs.Player(country)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	rev := gs.revolutionFor(p.UserID)
	if rev == nil || rev.Active == nil || rev.Opposition != "" {
		return nil, fmt.Errorf("no open revolution in %s: %w", country, ErrNotAllowed)
	}
	rev.Opposition = user
	if !rev.Voluntary {
		return nil, nil
	}
	t := &turn{gs: gs}
	t.resolveRevolution(rev)
	return t.events, nil
}
