package service

import (
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

// VisibleState returns the part of a game a country may see: other
// players' pending orders, money and secret actions are removed. Under fog
// of war only units next to the country's units or areas are kept. An
// empty country sees only public data.
func VisibleState(gs *machiavelli.GameState, sc *machiavelli.Scenario, country string) *machiavelli.GameState {
	v := gs.Clone()
	if gs.Finished {
		return v
	}

	orders := v.Orders[:0]
	for _, o := range v.Orders {
		if o.Player == country {
			orders = append(orders, o)
		}
	}
	v.Orders = orders

	var retreats []machiavelli.RetreatOrder
	for _, r := range v.RetreatOrders {
		if u := gs.Unit(r.UnitID); u != nil && u.Player == country {
			retreats = append(retreats, r)
		}
	}
	v.RetreatOrders = retreats

	var strategic []machiavelli.StrategicOrder
	for _, r := range v.StrategicOrders {
		if u := gs.Unit(r.UnitID); u != nil && u.Player == country {
			strategic = append(strategic, r)
		}
	}
	v.StrategicOrders = strategic

	expenses := v.Expenses[:0]
	for _, e := range v.Expenses {
		if e.Player == country {
			expenses = append(expenses, e)
		}
	}
	v.Expenses = expenses

	var assassins []machiavelli.Assassin
	for _, a := range v.Assassins {
		if a.Owner == country {
			assassins = append(assassins, a)
		}
	}
	v.Assassins = assassins

	var attempts []machiavelli.Assassination
	for _, a := range v.Assassinations {
		if a.Killer == country {
			attempts = append(attempts, a)
		}
	}
	v.Assassinations = attempts

	var diplomats []machiavelli.Diplomat
	for _, d := range v.Diplomats {
		if d.Player == country {
			diplomats = append(diplomats, d)
		}
	}
	v.Diplomats = diplomats

	for id := range v.Loans {
		if id != country {
			delete(v.Loans, id)
		}
	}
	for id, p := range v.Players {
		if id != country {
			p.Ducats = 0
		}
	}

	if gs.Config.FogOfWar {
		v.Units = visibleUnits(gs, sc, country)
	}
	return v
}

func visibleUnits(gs *machiavelli.GameState, sc *machiavelli.Scenario, country string) []*machiavelli.Unit {
	seen := make(map[string]bool)
	watch := func(code string) {
		seen[code] = true
		for _, n := range sc.Board.Borders(code) {
			seen[n] = true
		}
	}
	for _, u := range gs.UnitsOf(country) {
		watch(u.Area)
	}
	for _, a := range gs.ControlledAreas(country) {
		watch(a.Code)
	}
	for _, d := range gs.Diplomats {
		if d.Player == country {
			watch(d.Area)
		}
	}
	var units []*machiavelli.Unit
	for _, u := range gs.Units {
		if u.Player == country || seen[u.Area] {
			cu := *u
			units = append(units, &cu)
		}
	}
	return units
}
