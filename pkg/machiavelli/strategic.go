package machiavelli

import "fmt"

// StrategicUnits returns the units of a player that may move strategically.
func StrategicUnits(gs *GameState, sc *Scenario, player string) []*Unit {
	var out []*Unit
	for _, u := range gs.UnitsOf(player) {
		if u.Type == Garrison || u.Besieging {
			continue
		}
		if a := gs.Area(u.Area); a.Player == player || (u.Type == Fleet && sc.Board.Area(u.Area).IsSea) {
			out = append(out, u)
		}
	}
	return out
}

// validStrategicAreas returns the areas a unit may cross in a strategic
// movement.
func validStrategicAreas(gs *GameState, b *Board, u *Unit) map[string]bool {
	valid := make(map[string]bool)
	for _, code := range b.Codes() {
		a := b.Area(code)
		ga := gs.Area(code)
		if a.IsSea {
			switch u.Type {
			case Army:
				for _, f := range gs.UnitsIn(code) {
					if f.Type == Fleet && f.Player == u.Player {
						valid[code] = true
						break
					}
				}
			case Fleet:
				if len(gs.UnitsIn(code)) > 0 {
					continue
				}
				for _, n := range b.Borders(code) {
					if gs.Area(n).Player == u.Player {
						valid[code] = true
						break
					}
				}
			}
			continue
		}
		if ga.Player != u.Player || gs.FieldUnitIn(code) != nil {
			continue
		}
		if u.Type == Fleet && !a.IsCoast {
			continue
		}
		valid[code] = true
	}
	return valid
}

// CanMoveStrategically reports whether u can reach dest through valid
// strategic areas.
func CanMoveStrategically(gs *GameState, sc *Scenario, u *Unit, dest string) bool {
	b := sc.Board
	d := b.Area(dest)
	if d == nil || u.Type == Garrison || u.Besieging {
		return false
	}
	if u.Type == Army && (gs.Area(u.Area).Player != u.Player || d.IsSea) {
		return false
	}
	if u.Type == Fleet && !d.IsCoast && !d.IsSea {
		return false
	}
	valid := validStrategicAreas(gs, b, u)
	if !valid[dest] {
		return false
	}
	visited := map[string]bool{u.Area: true}
	queue := []string{u.Area}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range b.Borders(cur) {
			if !valid[next] || visited[next] {
				continue
			}
			if next == dest {
				return true
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return false
}

// SubmitStrategic stores a strategic movement order.
func SubmitStrategic(gs *GameState, sc *Scenario, player string, unitID int, dest string) error {
	if gs.Phase != PhaseStrategic {
		return ErrWrongPhase
	}
	u := gs.Unit(unitID)
	if u == nil {
		return ErrUnknownUnit
	}
	if u.Player != player {
		return ErrNotOwner
	}
	if !CanMoveStrategically(gs, sc, u, dest) {
		return fmt.Errorf("unit %d cannot reach %s: %w", unitID, dest, ErrNotAllowed)
	}
	for i, s := range gs.StrategicOrders {
		if s.UnitID == unitID {
			gs.StrategicOrders[i].Destination = dest
			return nil
		}
	}
	gs.StrategicOrders = append(gs.StrategicOrders, StrategicOrder{UnitID: unitID, Destination: dest})
	return nil
}

func (t *turn) processStrategicMovements() {
	gs := t.gs
	counts := make(map[string]int)
	for _, s := range gs.StrategicOrders {
		counts[s.Destination]++
	}
	for _, s := range gs.StrategicOrders {
		u := gs.Unit(s.UnitID)
		if u == nil {
			continue
		}
		if counts[s.Destination] > 1 {
			t.logf("%s cannot move to %s: several units move there", u.Describe(), s.Destination)
			continue
		}
		t.invadeArea(u, s.Destination)
	}
	gs.StrategicOrders = nil
}
