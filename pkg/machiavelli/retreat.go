package machiavelli

import "fmt"

// PossibleRetreats returns the areas a dislodged unit may retreat to. The
// unit's own area is included when it can retreat into the city as a
// garrison.
func PossibleRetreats(gs *GameState, sc *Scenario, u *Unit) []string {
	b := sc.Board
	here := b.Area(u.Area)
	var out []string
	for _, code := range b.Borders(u.Area) {
		ga := gs.Area(code)
		a := b.Area(code)
		if ga == nil || ga.Standoff || code == u.MustRetreat || gs.FieldUnitIn(code) != nil {
			continue
		}
		switch u.Type {
		case Army:
			if a.IsSea || a.Mixed {
				continue
			}
		case Fleet:
			if !b.Adjacent(u.Area, code, true) || (!a.IsSea && !a.IsCoast) {
				continue
			}
		}
		out = append(out, code)
	}
	if here.IsFortified && (u.Type == Army || (u.Type == Fleet && here.HasPort)) &&
		u.MustRetreat != u.Area && gs.GarrisonIn(u.Area) == nil {
		if reb := gs.RebellionIn(u.Area); reb == nil || !reb.Garrisoned {
			out = append(out, u.Area)
		}
	}
	return out
}

// SubmitRetreat stores the retreat of a dislodged unit. An empty area
// disbands the unit.
func SubmitRetreat(gs *GameState, sc *Scenario, player string, unitID int, area string) error {
	if gs.Phase != PhaseRetreats {
		return ErrWrongPhase
	}
	u := gs.Unit(unitID)
	if u == nil {
		return ErrUnknownUnit
	}
	if u.Player != player {
		return ErrNotOwner
	}
	if u.MustRetreat == "" {
		return fmt.Errorf("unit %d does not need to retreat: %w", unitID, ErrNotAllowed)
	}
	if area != "" {
		ok := false
		for _, code := range PossibleRetreats(gs, sc, u) {
			if code == area {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unit %d cannot retreat to %s: %w", unitID, area, ErrNotAllowed)
		}
	}
	for i, r := range gs.RetreatOrders {
		if r.UnitID == unitID {
			gs.RetreatOrders[i].Area = area
			return nil
		}
	}
	gs.RetreatOrders = append(gs.RetreatOrders, RetreatOrder{UnitID: unitID, Area: area})
	return nil
}

func (t *turn) processRetreats() {
	gs := t.gs
	ordered := make(map[int]bool, len(gs.RetreatOrders))
	for _, r := range gs.RetreatOrders {
		ordered[r.UnitID] = true
	}
	for _, u := range append([]*Unit(nil), gs.Units...) {
		if u.MustRetreat != "" && !ordered[u.ID] {
			t.disband(u, "no retreat order")
		}
	}

	counts := make(map[string]int)
	for _, r := range gs.RetreatOrders {
		if r.Area != "" {
			counts[r.Area]++
		}
	}
	for _, r := range append([]RetreatOrder(nil), gs.RetreatOrders...) {
		u := gs.Unit(r.UnitID)
		if u == nil {
			continue
		}
		switch {
		case r.Area == "":
			t.disband(u, "ordered to disband")
		case counts[r.Area] > 1:
			t.disband(u, fmt.Sprintf("several units retreat to %s", r.Area))
		case r.Area == u.Area:
			t.logf("%s retreats into the city", u.Describe())
			u.Type = Garrison
			u.MustRetreat = ""
		default:
			t.logf("%s retreats to %s", u.Describe(), r.Area)
			u.MustRetreat = ""
			u.Area = r.Area
			t.checkRebellion(u)
		}
	}
	gs.RetreatOrders = nil
}

func (t *turn) disband(u *Unit, reason string) {
	t.logf("%s disbanded: %s", u.Describe(), reason)
	t.emit(Event{Kind: EventUnitDisbanded, Player: u.Player, Area: u.Area, Unit: u.String()})
	t.gs.removeUnit(u.ID)
}
