package machiavelli

import "sort"

// resolver adjudicates the orders of one Orders phase. orders holds the
// single live order of each unit; dropping an order deletes it from the map.
type resolver struct {
	*turn
	orders        map[int]*Order
	conflictAreas map[string]bool
}

type invasion struct {
	unit       *Unit
	area       string
	conversion UnitType // empty for advances
}

// processOrders resolves the confirmed orders of the current Orders phase.
func (t *turn) processOrders() {
	r := &resolver{turn: t}
	t.logf("processing orders for %s %d", t.gs.Season, t.gs.Year)
	r.preprocess()
	r.resolveAutoGarrisons()
	r.filterSupports()
	r.filterConvoys()
	r.filterUnreachableAttacks()
	r.resolveConflicts()
	r.resolveSieges()
	r.announceRetreats()
	t.gs.Orders = nil
}

func (r *resolver) preprocess() {
	gs := r.gs
	r.orders = make(map[int]*Order)
	for _, o := range gs.Orders {
		u := gs.Unit(o.UnitID)
		if u == nil {
			continue
		}
		if gs.Config.Finances && o.Player != u.Player {
			continue
		}
		if !o.Confirmed {
			r.logf("%s not confirmed, deleted", o.Format(gs))
			continue
		}
		r.orders[u.ID] = o
	}
	for _, u := range gs.Units {
		if u.Besieging {
			if o := r.orders[u.ID]; o == nil || o.Code != OrderBesiege {
				u.Besieging = false
			}
		}
	}
	for _, u := range gs.Units {
		if o := r.orders[u.ID]; o != nil && o.Code != OrderHold {
			r.logf("%s %s", u.Player, o.Format(gs))
		} else if o != nil {
			r.logf("%s holds", u.Describe())
		}
	}
}

// sortedUnits returns the units that still have a live order, by id.
func (r *resolver) sortedUnits() []*Unit {
	var out []*Unit
	for _, u := range r.gs.Units {
		if _, ok := r.orders[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (r *resolver) drop(u *Unit) {
	delete(r.orders, u.ID)
}

func (r *resolver) resolveAutoGarrisons() {
	gs := r.gs
	for _, u := range r.sortedUnits() {
		o := r.orders[u.ID]
		if o.Code != OrderConvert || o.Type != Garrison {
			continue
		}
		if gs.GarrisonIn(u.Area) != nil {
			r.logf("%s cannot become a garrison: city already garrisoned", u.Describe())
			r.drop(u)
			continue
		}
		if reb := gs.RebellionIn(u.Area); reb != nil && reb.Garrisoned {
			r.logf("%s cannot become a garrison: rebels hold the city", u.Describe())
		} else {
			r.convert(u, Garrison)
		}
		r.drop(u)
	}
}

// attackedArea is the area a unit's order contests, or "".
func (r *resolver) attackedArea(u *Unit) string {
	o := r.orders[u.ID]
	if o == nil {
		return ""
	}
	switch o.Code {
	case OrderAdvance:
		return o.Destination
	case OrderConvert:
		return u.Area
	}
	return ""
}

func (r *resolver) computeConflictAreas() {
	r.conflictAreas = make(map[string]bool)
	for _, u := range r.sortedUnits() {
		o := r.orders[u.ID]
		switch {
		case o.Code == OrderAdvance:
			if r.b.Adjacent(u.Area, o.Destination, u.Type == Fleet) ||
				findConvoyLine(r.gs, r.b, r.orders, u, o.Destination) {
				r.conflictAreas[o.Destination] = true
			}
		case o.Code == OrderConvert && o.Type != Garrison:
			r.conflictAreas[u.Area] = true
		}
	}
}

// strength is the unit's power plus the power of the live supports that
// match its live order.
func (r *resolver) strength(u *Unit) int {
	o := r.orders[u.ID]
	s := u.Power
	for _, sid := range sortedKeys(r.orders) {
		so := r.orders[sid]
		if so.Code != OrderSupport || so.SubUnitID != u.ID {
			continue
		}
		if !supportMatches(so, o) {
			continue
		}
		if supporter := r.gs.Unit(sid); supporter != nil {
			s += supporter.Power
		}
	}
	if r.gs.Config.Finances && o != nil && o.Code == OrderAdvance {
		if reb := r.gs.RebellionIn(o.Destination); reb != nil && reb.Player != u.Player {
			s++
		}
	}
	return s
}

func supportMatches(support, o *Order) bool {
	if o == nil {
		return support.SubCode == OrderHold
	}
	switch o.Code {
	case OrderConvert:
		return support.SubCode == OrderConvert && support.SubType == o.Type
	case OrderAdvance:
		return support.SubCode == OrderAdvance && support.SubDestination == o.Destination
	default:
		return support.SubCode == OrderHold
	}
}

func sortedKeys(m map[int]*Order) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (r *resolver) filterSupports() {
	r.computeConflictAreas()
	for pass := 1; pass <= 2; pass++ {
		for _, s := range r.sortedUnits() {
			so := r.orders[s.ID]
			if so == nil || so.Code != OrderSupport || s.Type == Garrison || !r.conflictAreas[s.Area] {
				continue
			}
			for _, a := range r.attackersOf(s) {
				ao := r.orders[a.ID]
				if ao == nil {
					continue
				}
				fromSupported := (so.SubCode == OrderAdvance && so.SubDestination == a.Area) ||
					(so.SubCode == OrderConvert && so.SubType.Field() && r.subUnitArea(so) == a.Area)
				if !fromSupported {
					if pass == 1 {
						r.logf("support of %s broken by attack from %s", s.Describe(), a.Area)
						r.drop(s)
						break
					}
					continue
				}
				if pass == 2 && r.strength(a) > r.strength(s) {
					r.logf("support of %s broken: unit will be dislodged by %s", s.Describe(), a.Describe())
					r.drop(s)
					break
				}
			}
		}
	}
}

// attackersOf returns enemy units advancing into s's area or converting
// their garrison in it.
func (r *resolver) attackersOf(s *Unit) []*Unit {
	var out []*Unit
	for _, a := range r.sortedUnits() {
		if a.Player == s.Player {
			continue
		}
		ao := r.orders[a.ID]
		if (ao.Code == OrderAdvance && ao.Destination == s.Area) ||
			(ao.Code == OrderConvert && a.Type == Garrison && a.Area == s.Area) {
			out = append(out, a)
		}
	}
	return out
}

func (r *resolver) subUnitArea(o *Order) string {
	if sub := r.gs.Unit(o.SubUnitID); sub != nil {
		return sub.Area
	}
	return ""
}

func (r *resolver) filterConvoys() {
	gs := r.gs
	for _, a := range r.sortedUnits() {
		ao := r.orders[a.ID]
		if ao == nil {
			continue
		}
		var area string
		switch {
		case ao.Code == OrderAdvance && r.b.Area(ao.Destination) != nil && r.b.Area(ao.Destination).IsSea:
			area = ao.Destination
		case ao.Code == OrderConvert && a.Type == Garrison && r.b.Area(a.Area).Mixed:
			area = a.Area
		default:
			continue
		}
		var defender *Unit
		for _, d := range gs.UnitsIn(area) {
			if do := r.orders[d.ID]; d.Type == Fleet && do != nil && do.Code == OrderConvoy {
				defender = d
				break
			}
		}
		if defender == nil {
			continue
		}
		if r.strength(a) > r.strength(defender) {
			r.logf("%s cannot convoy: attacked by %s", defender.Describe(), a.Describe())
			r.drop(defender)
		}
	}
}

func (r *resolver) filterUnreachableAttacks() {
	for _, u := range r.sortedUnits() {
		o := r.orders[u.ID]
		if o.Code != OrderAdvance {
			continue
		}
		fleet := u.Type == Fleet
		if r.b.Adjacent(u.Area, o.Destination, fleet) {
			continue
		}
		if fleet || !findConvoyLine(r.gs, r.b, r.orders, u, o.Destination) {
			r.logf("%s: destination unreachable", o.Format(r.gs))
			r.drop(u)
		}
	}
}

type rankedUnit struct {
	unit     *Unit
	strength int
}

// listWithStrength ranks the units by initial strength, strongest first.
// Units of equal strength keep id order.
func (r *resolver) listWithStrength() []rankedUnit {
	out := make([]rankedUnit, 0, len(r.gs.Units))
	for _, u := range r.gs.Units {
		out = append(out, rankedUnit{unit: u, strength: r.strength(u)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].strength != out[j].strength {
			return out[i].strength > out[j].strength
		}
		return out[i].unit.ID < out[j].unit.ID
	})
	return out
}

// rivals are the other units contesting the area u attacks.
func (r *resolver) rivals(u *Unit, o *Order) []*Unit {
	var out []*Unit
	for _, v := range r.sortedUnits() {
		if v.ID == u.ID {
			continue
		}
		vo := r.orders[v.ID]
		switch o.Code {
		case OrderAdvance:
			if vo.Code == OrderAdvance && vo.Destination == o.Destination ||
				v.Type == Garrison && v.Area == o.Destination && vo.Code == OrderConvert {
				out = append(out, v)
			}
		case OrderConvert:
			if vo.Code == OrderAdvance && vo.Destination == u.Area {
				out = append(out, v)
			}
		}
	}
	return out
}

// defender is the unit trying to stay in, or swap with, the area u attacks.
func (r *resolver) defender(u *Unit, o *Order) *Unit {
	gs := r.gs
	staying := func(v *Unit, codes ...OrderCode) bool {
		vo := r.orders[v.ID]
		if vo == nil {
			return true
		}
		for _, c := range codes {
			if vo.Code == c {
				return true
			}
		}
		return false
	}
	switch o.Code {
	case OrderAdvance:
		for _, v := range gs.UnitsIn(o.Destination) {
			if vo := r.orders[v.ID]; vo != nil && vo.Code == OrderAdvance && vo.Destination == u.Area {
				return v
			}
		}
		for _, v := range gs.UnitsIn(o.Destination) {
			if v.Type.Field() && staying(v, OrderBesiege, OrderHold, OrderSupport, OrderConvoy) {
				return v
			}
		}
	case OrderConvert:
		for _, v := range gs.UnitsIn(u.Area) {
			if v.ID != u.ID && v.Type.Field() &&
				staying(v, OrderBesiege, OrderHold, OrderSupport, OrderConvoy, OrderConvert) {
				return v
			}
		}
	}
	return nil
}

func (r *resolver) resolveConflicts() {
	gs := r.gs
	var (
		conditioned []invasion
		origins     []string
		holding     []*Unit
	)
	execute := func(u *Unit, o *Order, area string) {
		if o.Code == OrderAdvance {
			r.invadeArea(u, area)
		} else {
			r.convert(u, o.Type)
		}
	}
	condition := func(u *Unit, o *Order, area string) {
		r.logf("%s: movement is conditioned", u.Describe())
		inv := invasion{unit: u, area: area}
		if o.Code == OrderAdvance {
			origins = append(origins, u.Area)
		} else {
			inv.conversion = o.Type
		}
		conditioned = append(conditioned, inv)
	}

	for _, ranked := range r.listWithStrength() {
		u := ranked.unit
		o := r.orders[u.ID]
		if o == nil {
			continue
		}
		if gs.Config.Finances && o.Code == OrderHold && u.Type != Garrison {
			holding = append(holding, u)
		}
		if o.Code != OrderAdvance && o.Code != OrderConvert {
			continue
		}
		s := ranked.strength
		rivals := r.rivals(u, o)
		defender := r.defender(u, o)
		conflict := gs.Area(r.attackedArea(u))
		if conflict == nil {
			continue
		}
		if conflict.Standoff {
			r.logf("%s: %s is a standoff area", o.Format(gs), conflict.Code)
			continue
		}

		standoff := false
		for _, rival := range rivals {
			if r.strength(rival) >= s {
				standoff = true
			} else {
				r.logf("%s loses against %s", rival.Describe(), u.Describe())
				r.drop(rival)
			}
		}
		if standoff {
			r.logf("standoff in %s", conflict.Code)
			conflict.Standoff = true
			for _, rival := range rivals {
				r.drop(rival)
			}
			r.drop(u)
			continue
		}

		if defender != nil {
			ds := s
			if defender.Player != u.Player {
				ds = r.strength(defender)
			}
			if ds >= s {
				if r.attackedArea(defender) == u.Area {
					r.logf("%s and %s try to exchange areas: standoff in %s", u.Describe(), defender.Describe(), defender.Area)
					gs.Area(defender.Area).Standoff = true
				} else {
					condition(u, o, defender.Area)
				}
				continue
			}
			r.logf("%s dislodged by %s", defender.Describe(), u.Describe())
			defender.MustRetreat = u.Area
			area := defender.Area
			r.drop(defender)
			execute(u, o, area)
			continue
		}

		leaving := gs.FieldUnitIn(conflict.Code)
		if leaving == nil {
			execute(u, o, conflict.Code)
			continue
		}
		if leaving.Player != u.Player && s > leaving.Power {
			r.logf("%s beats %s leaving %s", u.Describe(), leaving.Describe(), conflict.Code)
			leaving.MustRetreat = u.Area
			execute(u, o, conflict.Code)
			continue
		}
		condition(u, o, conflict.Code)
	}

	removeOrigin := func(area string) {
		for i, a := range origins {
			if a == area {
				origins = append(origins[:i], origins[i+1:]...)
				return
			}
		}
	}
	hasOrigin := func(area string) bool {
		for _, a := range origins {
			if a == area {
				return true
			}
		}
		return false
	}
	run := func(ci invasion) {
		if ci.conversion == "" {
			r.invadeArea(ci.unit, ci.area)
		} else {
			r.convert(ci.unit, ci.conversion)
		}
	}

	for found := true; found; {
		found = false
		for i, ci := range conditioned {
			if gs.FieldUnitIn(ci.area) != nil {
				continue
			}
			removeOrigin(ci.unit.Area)
			run(ci)
			conditioned = append(conditioned[:i], conditioned[i+1:]...)
			found = true
			break
		}
	}
	for found := true; found; {
		found = false
		for i, ci := range conditioned {
			if hasOrigin(ci.area) {
				continue
			}
			r.logf("%s cannot enter %s: standoff", ci.unit.Describe(), ci.area)
			gs.Area(ci.area).Standoff = true
			conditioned = append(conditioned[:i], conditioned[i+1:]...)
			removeOrigin(ci.unit.Area)
			found = true
			break
		}
	}
	for _, ci := range conditioned {
		run(ci)
	}

	for _, h := range holding {
		if h.MustRetreat != "" {
			continue
		}
		if reb := gs.RebellionIn(h.Area); reb != nil && reb.Player == h.Player && !reb.Garrisoned {
			r.logf("rebellion in %s is put down", h.Area)
			gs.removeRebellion(h.Area)
		}
	}
}

func (r *resolver) resolveSieges() {
	gs := r.gs
	for _, u := range gs.Units {
		if o := r.orders[u.ID]; u.Besieging && (o == nil || o.Code != OrderBesiege) {
			r.logf("siege by %s is discontinued", u.Describe())
			u.Besieging = false
		}
	}
	for _, b := range r.sortedUnits() {
		if r.orders[b.ID].Code != OrderBesiege || gs.Unit(b.ID) == nil {
			continue
		}
		if p := gs.Player(b.Player); p != nil && p.Assassinated {
			r.logf("%s belongs to an assassinated player", b.Describe())
			continue
		}
		defender := gs.GarrisonIn(b.Area)
		var reb *Rebellion
		if defender == nil {
			if reb = gs.RebellionIn(b.Area); reb == nil || reb.Player != b.Player || !reb.Garrisoned {
				r.logf("%s besieges an empty city", b.Describe())
				b.Besieging = false
				r.drop(b)
				continue
			}
		}
		if b.Besieging {
			b.Besieging = false
			if defender != nil {
				r.logf("%s surrenders to %s", defender.Describe(), b.Describe())
				r.emit(Event{Kind: EventUnitSurrendered, Player: defender.Player, Area: defender.Area, Unit: defender.String()})
				gs.removeUnit(defender.ID)
			} else {
				r.logf("rebellion in %s is put down by siege", b.Area)
				gs.removeRebellion(b.Area)
			}
		} else {
			r.logf("%s starts a siege", b.Describe())
			b.Besieging = true
			r.emit(Event{Kind: EventSiegeStarted, Player: b.Player, Area: b.Area, Unit: b.String()})
			if defender != nil {
				if p := gs.Player(defender.Player); p != nil && p.Assassinated {
					r.logf("%s surrenders: its player was assassinated", defender.Describe())
					r.emit(Event{Kind: EventUnitSurrendered, Player: defender.Player, Area: defender.Area, Unit: defender.String()})
					gs.removeUnit(defender.ID)
					b.Besieging = false
				}
			}
		}
		r.drop(b)
	}
}

func (r *resolver) announceRetreats() {
	gs := r.gs
	for _, u := range append([]*Unit(nil), gs.Units...) {
		if u.MustRetreat == "" {
			continue
		}
		r.logf("%s must retreat", u.Describe())
		r.emit(Event{Kind: EventUnitMustRetreat, Player: u.Player, Area: u.Area, Unit: u.String()})
		if len(PossibleRetreats(gs, r.sc, u)) == 0 {
			r.logf("%s has nowhere to retreat and is disbanded", u.Describe())
			r.emit(Event{Kind: EventUnitDisbanded, Player: u.Player, Area: u.Area, Unit: u.String()})
			gs.removeUnit(u.ID)
		}
	}
}
