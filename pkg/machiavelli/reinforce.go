package machiavelli

import (
	"fmt"
	"sort"
)

// buildPossible reports whether a unit of type t may be raised in a.
func buildPossible(a *Area, t UnitType) bool {
	switch t {
	case Army:
		return !a.IsSea && !a.Mixed
	case Fleet:
		return a.HasPort
	case Garrison:
		return a.IsFortified
	}
	return false
}

// PossibleReinforcements returns the unit types that can be raised in an
// area given the units already there.
func PossibleReinforcements(gs *GameState, sc *Scenario, area string) []UnitType {
	a := sc.Board.Area(area)
	if a == nil {
		return nil
	}
	hasG, hasField := false, false
	for _, u := range gs.UnitsIn(area) {
		if u.Type == Garrison {
			hasG = true
		} else {
			hasField = true
		}
	}
	var out []UnitType
	if buildPossible(a, Garrison) && !hasG {
		out = append(out, Garrison)
	}
	if buildPossible(a, Fleet) && !hasField {
		out = append(out, Fleet)
	}
	if buildPossible(a, Army) && !hasField {
		out = append(out, Army)
	}
	return out
}

// AreasForNewUnits returns the cities where a player may raise units. With
// conquering, cities of conquered countries count as home.
func AreasForNewUnits(gs *GameState, sc *Scenario, player string, finances bool) []string {
	homes := map[string]bool{player: true}
	if gs.Config.Conquering {
		for _, p := range gs.Players {
			if p.Conqueror == player {
				homes[p.ID] = true
			}
		}
	}
	excluded := make(map[string]bool)
	if finances {
		for _, u := range gs.UnitsOf(player) {
			if u.Placed && !u.Paid {
				excluded[u.Area] = true
			}
		}
		for _, r := range gs.Rebellions {
			if r.Player == player {
				excluded[r.Area] = true
			}
		}
	}
	var out []string
	for _, ga := range gs.ControlledAreas(player) {
		a := sc.Board.Area(ga.Code)
		if !a.HasCity || ga.Famine || !homes[ga.HomeOf] || excluded[ga.Code] {
			continue
		}
		n := len(gs.UnitsIn(ga.Code))
		if (a.IsFortified && n > 1) || (!a.IsFortified && n > 0) {
			continue
		}
		out = append(out, ga.Code)
	}
	return out
}

// UnitsToPlace returns how many units a player must raise, or a negative
// number of units to disband. Cities under famine do not support new
// units unless garrisoned.
func UnitsToPlace(gs *GameState, sc *Scenario, player string) int {
	p := gs.Player(player)
	if p == nil || p.IsAutonomous() {
		return 0
	}
	cities := 0
	famines := 0
	for _, ga := range gs.ControlledAreas(player) {
		if !sc.Board.Area(ga.Code).HasCity {
			continue
		}
		cities++
		if ga.Famine && gs.GarrisonIn(ga.Code) == nil {
			famines++
		}
	}
	units := 0
	for _, u := range gs.UnitsOf(player) {
		if u.Placed {
			units++
		}
	}
	var place int
	switch {
	case cities <= units:
		place = cities - units
	case cities-famines <= units:
		place = 0
	default:
		place = cities - famines - units
	}
	if slots := len(AreasForNewUnits(gs, sc, player, false)); place > slots {
		place = slots
	}
	return place
}

// Reinforcement is a new unit a player wants to raise. Special names one of
// the country's special unit classes.
type Reinforcement struct {
	Type    UnitType `json:"type"`
	Area    string   `json:"area"`
	Special string   `json:"special,omitempty"`
}

func reinforcementPlayer(gs *GameState, player string) (*Player, error) {
	if gs.Phase != PhaseReinforce {
		return nil, ErrWrongPhase
	}
	p := gs.Player(player)
	if p == nil || p.IsAutonomous() || p.Eliminated {
		return nil, ErrUnknownPlayer
	}
	if p.Done {
		return nil, fmt.Errorf("%s already reinforced: %w", player, ErrNotAllowed)
	}
	return p, nil
}

func validateReinforcements(gs *GameState, sc *Scenario, player string, units []Reinforcement, finances bool) error {
	allowed := make(map[string]bool)
	for _, code := range AreasForNewUnits(gs, sc, player, finances) {
		allowed[code] = true
	}
	used := make(map[string]bool)
	for _, r := range units {
		if !allowed[r.Area] {
			return fmt.Errorf("%s does not accept new units: %w", r.Area, ErrNotAllowed)
		}
		if used[r.Area] {
			return fmt.Errorf("two units in %s: %w", r.Area, ErrNotAllowed)
		}
		used[r.Area] = true
		ok := false
		for _, t := range PossibleReinforcements(gs, sc, r.Area) {
			if t == r.Type {
				ok = true
			}
		}
		if !ok {
			return fmt.Errorf("%s cannot be placed in %s: %w", r.Type, r.Area, ErrNotAllowed)
		}
	}
	return nil
}

// SubmitReinforcements raises or disbands units in a game without
// finances. A player with units to place sends exactly that many new units;
// a player over the limit names the units to disband.
func SubmitReinforcements(gs *GameState, sc *Scenario, player string, units []Reinforcement, disband []int) error {
	if gs.Config.Finances {
		return fmt.Errorf("reinforcements are bought under finances: %w", ErrNotAllowed)
	}
	if _, err := reinforcementPlayer(gs, player); err != nil {
		return err
	}
	n := UnitsToPlace(gs, sc, player)
	switch {
	case n > 0:
		if len(units) != n || len(disband) > 0 {
			return fmt.Errorf("%s must place %d units: %w", player, n, ErrWrongUnitCount)
		}
		if err := validateReinforcements(gs, sc, player, units, false); err != nil {
			return err
		}
		for _, r := range units {
			u := gs.newUnit(r.Type, player, r.Area)
			u.Placed = false
			u.Paid = true
		}
	case n < 0:
		if len(disband) != -n || len(units) > 0 {
			return fmt.Errorf("%s must disband %d units: %w", player, -n, ErrWrongUnitCount)
		}
		seen := make(map[int]bool)
		for _, id := range disband {
			u := gs.Unit(id)
			if u == nil {
				return ErrUnknownUnit
			}
			if u.Player != player {
				return ErrNotOwner
			}
			if seen[id] {
				return fmt.Errorf("unit %d listed twice: %w", id, ErrNotAllowed)
			}
			seen[id] = true
		}
		for _, id := range disband {
			gs.Unit(id).Paid = false
		}
	default:
		if len(units) > 0 || len(disband) > 0 {
			return fmt.Errorf("%s has nothing to reinforce: %w", player, ErrWrongUnitCount)
		}
	}
	EndPhase(gs, player, false)
	return nil
}

// PayUnits is the first reinforcement step under finances: the listed units
// are kept and paid, the others will be disbanded.
func PayUnits(gs *GameState, player string, ids []int) error {
	if !gs.Config.Finances {
		return ErrRuleDisabled
	}
	p, err := reinforcementPlayer(gs, player)
	if err != nil {
		return err
	}
	if p.Step != 0 {
		return fmt.Errorf("units already paid: %w", ErrNotAllowed)
	}
	cost := 0
	seen := make(map[int]bool)
	for _, id := range ids {
		u := gs.Unit(id)
		if u == nil {
			return ErrUnknownUnit
		}
		if u.Player != player {
			return ErrNotOwner
		}
		if !u.Placed || seen[id] {
			return fmt.Errorf("unit %d cannot be paid: %w", id, ErrNotAllowed)
		}
		seen[id] = true
		cost += u.Cost
	}
	if cost > p.Ducats {
		return ErrInsufficientDucats
	}
	for _, id := range ids {
		gs.Unit(id).Paid = true
	}
	p.Ducats -= cost
	p.Step = 1
	return nil
}

// MaxNewUnits returns how many units a player can buy in the second
// reinforcement step.
func MaxNewUnits(gs *GameState, sc *Scenario, player string) int {
	p := gs.Player(player)
	if p == nil {
		return 0
	}
	n := p.Ducats / DefaultUnitCost
	if slots := len(AreasForNewUnits(gs, sc, player, true)); slots < n {
		n = slots
	}
	return n
}

func hasSpecialUnit(gs *GameState, player string) bool {
	for _, u := range gs.UnitsOf(player) {
		if u.Paid && u.Cost > DefaultUnitCost {
			return true
		}
	}
	return false
}

// BuyUnits is the second reinforcement step under finances. At most one
// special unit may be bought, and only by a player who keeps none.
func BuyUnits(gs *GameState, sc *Scenario, player string, units []Reinforcement) error {
	if !gs.Config.Finances {
		return ErrRuleDisabled
	}
	p, err := reinforcementPlayer(gs, player)
	if err != nil {
		return err
	}
	if p.Step != 1 {
		return fmt.Errorf("units must be paid first: %w", ErrNotAllowed)
	}
	if len(units) > MaxNewUnits(gs, sc, player) {
		return fmt.Errorf("too many new units: %w", ErrWrongUnitCount)
	}
	if err := validateReinforcements(gs, sc, player, units, true); err != nil {
		return err
	}
	country := sc.Country(player)
	specials := 0
	total := 0
	classes := make([]*SpecialUnit, len(units))
	for i, r := range units {
		total += DefaultUnitCost
		if r.Special == "" {
			continue
		}
		if !gs.Config.SpecialUnits || hasSpecialUnit(gs, player) || country == nil {
			return fmt.Errorf("special units not available: %w", ErrNotAllowed)
		}
		specials++
		if specials > 1 {
			return fmt.Errorf("only one special unit: %w", ErrNotAllowed)
		}
		for j := range country.SpecialUnits {
			if country.SpecialUnits[j].Name == r.Special {
				classes[i] = &country.SpecialUnits[j]
			}
		}
		if classes[i] == nil {
			return fmt.Errorf("unknown unit class %s: %w", r.Special, ErrNotAllowed)
		}
		total += classes[i].Cost - DefaultUnitCost
	}
	if total > p.Ducats {
		return ErrInsufficientDucats
	}
	for i, r := range units {
		u := gs.newUnit(r.Type, player, r.Area)
		u.Placed = false
		u.Paid = true
		if c := classes[i]; c != nil {
			u.Cost = c.Cost
			u.Power = c.Power
			u.Loyalty = c.Loyalty
		}
	}
	p.Ducats -= total
	EndPhase(gs, player, false)
	return nil
}

// autoReinforcements acts for players who did not finish the phase. Under
// finances they keep as many units as they can afford, oldest first;
// otherwise the newest units are disbanded.
func (t *turn) autoReinforcements() {
	gs := t.gs
	for _, p := range gs.UserPlayers() {
		if p.Eliminated || (p.Done && !p.Surrendered && !p.Forced) {
			continue
		}
		units := gs.UnitsOf(p.ID)
		sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
		if gs.Config.Finances {
			for _, u := range units {
				if p.Ducats >= u.Cost && !u.Paid {
					u.Paid = true
					p.Ducats -= u.Cost
				}
			}
			continue
		}
		if n := UnitsToPlace(gs, t.sc, p.ID); n < 0 {
			for i := len(units) - 1; i >= 0 && n < 0; i-- {
				units[i].Paid = false
				n++
			}
		}
	}
}

// adjustUnits disbands unpaid units, places the new ones and leaves every
// unit unpaid for the next reinforcement phase.
func (t *turn) adjustUnits() {
	gs := t.gs
	for _, u := range append([]*Unit(nil), gs.Units...) {
		if !u.Paid {
			t.disband(u, "not paid")
		}
	}
	for _, u := range gs.Units {
		if !u.Placed {
			u.Placed = true
			t.logf("new unit: %s", u.Describe())
		}
		u.Paid = false
	}
}
