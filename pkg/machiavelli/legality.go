package machiavelli

// IsPossible reports whether an order obeys the movement rules for the
// current positions of the units. It does not look at other orders, so a
// convoyed advance is possible whenever both ends are on the coast.
func IsPossible(gs *GameState, sc *Scenario, o *Order) bool {
	b := sc.Board
	u := gs.Unit(o.UnitID)
	if u == nil {
		return false
	}
	here := b.Area(u.Area)
	if here == nil {
		return false
	}

	switch o.Code {
	case OrderHold:
		return true

	case OrderAdvance:
		dest := b.Area(o.Destination)
		if dest == nil {
			return false
		}
		switch u.Type {
		case Army:
			if dest.IsSea || dest.Mixed {
				return false
			}
			if here.IsCoast && dest.IsCoast {
				return true
			}
			return b.Adjacent(u.Area, dest.Code, false)
		case Fleet:
			if !dest.IsSea && !dest.IsCoast {
				return false
			}
			return b.Adjacent(u.Area, dest.Code, true)
		}
		return false

	case OrderBesiege:
		if !here.IsFortified {
			return false
		}
		if u.Type != Army && !(u.Type == Fleet && here.HasPort) {
			return false
		}
		if g := gs.GarrisonIn(u.Area); g != nil {
			return g.Player != u.Player
		}
		reb := gs.RebellionIn(u.Area)
		return reb != nil && reb.Player == u.Player && reb.Garrisoned

	case OrderConvert:
		if !here.IsFortified || o.Type == u.Type {
			return false
		}
		if u.Type == Garrison {
			switch o.Type {
			case Army:
				return !here.IsSea && !here.Mixed
			case Fleet:
				return here.HasPort
			}
			return false
		}
		if o.Type != Garrison || gs.GarrisonIn(u.Area) != nil {
			return false
		}
		return u.Type == Army || (u.Type == Fleet && here.HasPort)

	case OrderConvoy:
		sub := gs.Unit(o.SubUnitID)
		if sub == nil || u.Type != Fleet || sub.Type != Army {
			return false
		}
		return here.IsSea || here.Mixed

	case OrderSupport:
		sub := gs.Unit(o.SubUnitID)
		if sub == nil || sub.ID == u.ID {
			return false
		}
		if sub.Type == Garrison && o.SubCode != OrderConvert {
			return false
		}
		if u.Type == Garrison {
			if o.SubCode == OrderAdvance && o.SubDestination == u.Area {
				return true
			}
			return o.SubCode == OrderHold && sub.Area == u.Area
		}
		supported := sub.Area
		if o.SubCode == OrderAdvance {
			supported = o.SubDestination
		}
		target := b.Area(supported)
		if target == nil {
			return false
		}
		if u.Type == Fleet {
			return (target.IsSea || target.IsCoast) && b.Adjacent(u.Area, supported, true)
		}
		return !target.IsSea && b.Adjacent(u.Area, supported, false)
	}
	return false
}

// findConvoyLine reports whether a chain of fleets ordered to convoy unit
// to dest links the unit's area with dest.
func findConvoyLine(gs *GameState, b *Board, orders map[int]*Order, unit *Unit, dest string) bool {
	convoy := map[string]bool{dest: true}
	for id, o := range orders {
		if o.Code != OrderConvoy || o.SubUnitID != unit.ID || o.SubDestination != dest {
			continue
		}
		fleet := gs.Unit(id)
		if fleet == nil {
			continue
		}
		if a := b.Area(fleet.Area); a != nil && (a.IsSea || a.Mixed) {
			convoy[fleet.Area] = true
		}
	}
	if len(convoy) <= 1 {
		return false
	}

	visited := map[string]bool{unit.Area: true}
	queue := []string{unit.Area}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range b.Borders(cur) {
			if !convoy[next] || visited[next] {
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

// SupportTarget is an order of another unit that a unit could support.
type SupportTarget struct {
	UnitID      int
	Code        OrderCode
	Destination string
	Type        UnitType
}

// OrderTargets lists what a unit could legally be ordered to do. Clients
// build their order forms from it.
type OrderTargets struct {
	Advance []string
	Besiege bool
	Convert []UnitType
	Convoy  []int // armies the unit could convoy
	Support []SupportTarget
}

// LegalOrderTargets returns the possible orders for one of the player's
// units.
func LegalOrderTargets(gs *GameState, sc *Scenario, player string, unitID int) (*OrderTargets, error) {
	u := gs.Unit(unitID)
	if u == nil {
		return nil, ErrUnknownUnit
	}
	if u.Player != player {
		return nil, ErrNotOwner
	}
	b := sc.Board
	t := &OrderTargets{}

	if u.Type.Field() {
		for _, code := range b.Codes() {
			if code == u.Area {
				continue
			}
			if IsPossible(gs, sc, &Order{UnitID: u.ID, Code: OrderAdvance, Destination: code}) {
				t.Advance = append(t.Advance, code)
			}
		}
	}
	t.Besiege = IsPossible(gs, sc, &Order{UnitID: u.ID, Code: OrderBesiege})
	for _, typ := range []UnitType{Army, Fleet, Garrison} {
		if IsPossible(gs, sc, &Order{UnitID: u.ID, Code: OrderConvert, Type: typ}) {
			t.Convert = append(t.Convert, typ)
		}
	}

	for _, other := range gs.Units {
		if other.ID == u.ID {
			continue
		}
		if u.Type == Fleet && other.Type == Army && b.Adjacent(u.Area, other.Area, false) &&
			IsPossible(gs, sc, &Order{UnitID: u.ID, Code: OrderConvoy, SubUnitID: other.ID}) {
			t.Convoy = append(t.Convoy, other.ID)
		}
		for _, st := range candidateSupports(b, other) {
			o := &Order{
				UnitID:         u.ID,
				Code:           OrderSupport,
				SubUnitID:      other.ID,
				SubCode:        st.Code,
				SubDestination: st.Destination,
				SubType:        st.Type,
			}
			if IsPossible(gs, sc, o) {
				t.Support = append(t.Support, st)
			}
		}
	}
	return t, nil
}

func candidateSupports(b *Board, sub *Unit) []SupportTarget {
	out := []SupportTarget{{UnitID: sub.ID, Code: OrderHold}}
	if sub.Type.Field() {
		for _, code := range b.Borders(sub.Area) {
			out = append(out, SupportTarget{UnitID: sub.ID, Code: OrderAdvance, Destination: code})
		}
	}
	for _, typ := range []UnitType{Army, Fleet, Garrison} {
		if typ != sub.Type {
			out = append(out, SupportTarget{UnitID: sub.ID, Code: OrderConvert, Type: typ})
		}
	}
	return out
}
