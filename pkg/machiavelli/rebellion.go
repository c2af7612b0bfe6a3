package machiavelli

import "fmt"

// Rebellion is an uprising in an area against the player who controlled it
// when the rebellion broke out. A garrisoned rebellion holds the city.
type Rebellion struct {
	Area       string
	Player     string
	Garrisoned bool
	Repressed  bool // deleted at the end of the season
}

// RebellionIn returns the rebellion in an area, or nil.
func (gs *GameState) RebellionIn(area string) *Rebellion {
	for _, r := range gs.Rebellions {
		if r.Area == area {
			return r
		}
	}
	return nil
}

func (gs *GameState) removeRebellion(area string) {
	var out []*Rebellion
	for _, r := range gs.Rebellions {
		if r.Area != area {
			out = append(out, r)
		}
	}
	gs.Rebellions = out
}

// placeRebellion starts a rebellion against the controller of an area.
func (t *turn) placeRebellion(area string) error {
	gs := t.gs
	ga := gs.Area(area)
	if ga == nil {
		return ErrUnknownArea
	}
	if ga.Player == "" {
		return fmt.Errorf("rebellion in %s: area not controlled: %w", area, ErrNotAllowed)
	}
	a := t.b.Area(area)
	if a.IsSea {
		return fmt.Errorf("rebellion in sea area %s: %w", area, ErrNotAllowed)
	}
	if gs.RebellionIn(area) != nil {
		return fmt.Errorf("rebellion in %s already exists: %w", area, ErrNotAllowed)
	}
	reb := &Rebellion{Area: area, Player: ga.Player}
	if a.IsFortified {
		if gs.GarrisonIn(area) == nil {
			reb.Garrisoned = true
		} else if a.Mixed {
			return fmt.Errorf("rebellion in garrisoned %s: %w", area, ErrNotAllowed)
		}
	}
	gs.Rebellions = append(gs.Rebellions, reb)
	t.logf("rebellion breaks out in %s against %s", area, reb.Player)
	t.emit(Event{Kind: EventRebellionStarted, Player: reb.Player, Area: area})
	return nil
}

// checkRebellion represses a rebellion against another player in the
// unit's area.
func (t *turn) checkRebellion(u *Unit) {
	if reb := t.gs.RebellionIn(u.Area); reb != nil && reb.Player != u.Player && !reb.Repressed {
		reb.Repressed = true
		t.logf("%s represses the rebellion in %s", u.Describe(), u.Area)
		t.emit(Event{Kind: EventRebellionRepressed, Player: reb.Player, Area: u.Area})
	}
}

// checkAssassinationRebellion rolls for a rebellion in an area of a
// weakened player. mod is subtracted from the die.
func (t *turn) checkAssassinationRebellion(area string, mod int) bool {
	gs := t.gs
	ga := gs.Area(area)
	if ga == nil || ga.Player == "" {
		return false
	}
	occupied := false
	for _, u := range gs.UnitsIn(area) {
		if u.Player != ga.Player {
			return false
		}
		occupied = true
	}
	if reb := gs.RebellionIn(area); reb != nil && reb.Player == ga.Player {
		return false
	}
	if gs.Config.ReligiousWar && t.religionsDiffer(ga.Player, area) {
		mod++
	}
	die := t.dice.Roll1d6() - mod
	var result bool
	if ga.HomeOf == ga.Player {
		result = (occupied && die <= 1) || (!occupied && die <= 2)
	} else {
		result = (occupied && die <= 3) || (!occupied && die <= 5)
	}
	if !result {
		return false
	}
	return t.placeRebellion(area) == nil
}

func (t *turn) religionsDiffer(player, area string) bool {
	p := t.gs.Player(player)
	a := t.b.Area(area)
	if p == nil || a == nil || p.Religion == "" || a.Religion == "" {
		return false
	}
	return p.Religion != a.Religion
}

func (t *turn) deleteRepressedRebellions() {
	var out []*Rebellion
	for _, r := range t.gs.Rebellions {
		if !r.Repressed {
			out = append(out, r)
		}
	}
	t.gs.Rebellions = out
}
