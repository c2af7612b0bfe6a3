package machiavelli

import "sort"

// updateControls gives each land area to the only user player with units
// in it. Two players in an area leave it uncontrolled.
func (t *turn) updateControls() error {
	gs := t.gs
	for _, code := range gs.areaCodes() {
		a := t.b.Area(code)
		if a.IsSea && !a.Mixed {
			continue
		}
		ga := gs.Areas[code]
		seen := make(map[string]bool)
		var players []string
		for _, u := range gs.UnitsIn(code) {
			if !seen[u.Player] {
				seen[u.Player] = true
				players = append(players, u.Player)
			}
		}
		sort.Strings(players)
		switch {
		case len(players) > 2:
			return &InvariantError{Area: code, Players: players, Err: ErrWrongUnitCount}
		case len(players) == 1 && players[0] != AutonomousPlayer:
			if ga.Player != players[0] {
				t.logf("%s takes control of %s", players[0], code)
				ga.Player = players[0]
				ga.Years = 0
			} else {
				t.increaseControlCounter(ga)
			}
		case len(players) == 2:
			ga.Player = ""
			ga.Years = 0
		default:
			if ga.Player != "" {
				t.increaseControlCounter(ga)
			}
		}
	}
	return nil
}

// increaseControlCounter makes an area part of its controller's home
// country after two years under variable home rules.
func (t *turn) increaseControlCounter(ga *GameArea) {
	if !t.gs.Config.VariableHome || ga.Years >= 2 || ga.HomeOf == ga.Player {
		return
	}
	ga.Years++
	if ga.Years == 2 {
		t.logf("%s becomes home of %s", ga.Code, ga.Player)
		ga.HomeOf = ga.Player
	}
}

// homeAreas returns the areas currently in the player's home country.
func (gs *GameState) homeAreas(player string) []*GameArea {
	var out []*GameArea
	for _, code := range gs.areaCodes() {
		if ga := gs.Areas[code]; ga.HomeOf == player {
			out = append(out, ga)
		}
	}
	return out
}

// CheckEliminated reports whether a player has lost its home country. A
// player survives with an empty controlled home area, or with a home area
// only its own units occupy.
func CheckEliminated(gs *GameState, player string) bool {
	p := gs.Player(player)
	if p == nil || p.IsAutonomous() {
		return false
	}
	for _, ga := range gs.homeAreas(player) {
		units := gs.UnitsIn(ga.Code)
		if ga.Player == player && len(units) == 0 {
			return false
		}
		own, enemy := false, false
		for _, u := range units {
			if u.Player == player {
				own = true
			} else {
				enemy = true
			}
		}
		if own && !enemy {
			return false
		}
	}
	return true
}

func (t *turn) eliminate(p *Player) {
	gs := t.gs
	t.logf("%s is eliminated", p.ID)
	t.emit(Event{Kind: EventPlayerEliminated, Player: p.ID})
	p.Eliminated = true
	p.Ducats = 0
	p.IsExcommunicated = false
	p.PopeExcommunicated = false
	for _, u := range gs.UnitsOf(p.ID) {
		gs.removeUnit(u.ID)
	}
	for _, ga := range gs.ControlledAreas(p.ID) {
		ga.Player = ""
	}
	if rev := gs.revolutionFor(p.UserID); rev != nil && rev.Active != nil {
		rev.Active = nil
	}
	if gs.Config.Excommunication && p.MayExcommunicate {
		for _, other := range gs.Players {
			other.IsExcommunicated = false
			other.PopeExcommunicated = false
		}
	}
}

// checkConquerings gives an eliminated player's home country to the one
// player controlling all of it.
func (t *turn) checkConquerings() {
	gs := t.gs
	for _, p := range gs.UserPlayers() {
		if !p.Eliminated {
			continue
		}
		homes := gs.homeAreas(p.ID)
		controllers := make(map[string]bool)
		neutral := false
		for _, ga := range homes {
			if ga.Player == "" {
				neutral = true
				break
			}
			controllers[ga.Player] = true
		}
		if neutral || len(controllers) != 1 {
			continue
		}
		for c := range controllers {
			if c != p.ID && c != p.Conqueror {
				t.logf("%s conquers %s", c, p.ID)
				t.emit(Event{Kind: EventCountryConquered, Player: p.ID, Target: c})
				p.Conqueror = c
			}
		}
	}
}
