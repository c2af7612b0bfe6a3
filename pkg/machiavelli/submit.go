package machiavelli

import "fmt"

func orderingPlayer(gs *GameState, player string) (*Player, error) {
	if gs.Finished {
		return nil, ErrGameFinished
	}
	p := gs.Player(player)
	if p == nil || p.IsAutonomous() || p.Eliminated {
		return nil, ErrUnknownPlayer
	}
	return p, nil
}

// mayOrder reports whether player commands the unit this turn. Under
// finances a player buying a unit may already give it orders.
func mayOrder(gs *GameState, player string, u *Unit) bool {
	if u.Player == player {
		return true
	}
	if !gs.Config.Finances {
		return false
	}
	for _, e := range gs.Expenses {
		if e.Player == player && e.UnitID == u.ID &&
			(e.Type == ExpenseBuyAutonomous || e.Type == ExpenseBuyEnemy) {
			return true
		}
	}
	return false
}

// SubmitOrder checks the shape of an order and stores it, replacing any
// previous order the player gave to the unit. Whether the move is possible
// is only checked on confirmation.
func SubmitOrder(gs *GameState, player string, o Order) (Order, error) {
	p, err := orderingPlayer(gs, player)
	if err != nil {
		return Order{}, err
	}
	if gs.Phase != PhaseOrders {
		return Order{}, ErrWrongPhase
	}
	if p.Done {
		return Order{}, fmt.Errorf("%s already confirmed: %w", player, ErrNotAllowed)
	}
	invalid := func(msg string) (Order, error) {
		return Order{}, &ValidationError{Order: o, Message: msg}
	}
	u := gs.Unit(o.UnitID)
	if u == nil {
		return Order{}, ErrUnknownUnit
	}
	if !mayOrder(gs, player, u) {
		return Order{}, ErrNotOwner
	}
	knownArea := func(code string) bool { return gs.Area(code) != nil }

	switch o.Code {
	case OrderHold, OrderBesiege:
	case OrderAdvance:
		if o.Destination == "" {
			return invalid("an advance needs a destination")
		}
		if !knownArea(o.Destination) {
			return Order{}, ErrUnknownArea
		}
	case OrderConvert:
		if !o.Type.Valid() {
			return invalid("a conversion needs a unit type")
		}
		if o.Type == u.Type {
			return invalid("a unit must convert into a different type")
		}
	case OrderConvoy:
		if o.SubUnitID == 0 {
			return invalid("a convoy needs a unit to carry")
		}
		if o.SubDestination == "" {
			return invalid("a convoy needs a destination")
		}
		if !knownArea(o.SubDestination) {
			return Order{}, ErrUnknownArea
		}
		if gs.Areas[u.Area].Storm {
			return invalid("a fleet cannot convoy during a storm")
		}
	case OrderSupport:
		if o.SubUnitID == 0 {
			return invalid("a support needs a unit to support")
		}
		sub := gs.Unit(o.SubUnitID)
		if sub == nil {
			return Order{}, ErrUnknownUnit
		}
		switch o.SubCode {
		case OrderHold:
		case OrderAdvance:
			if o.SubDestination == "" {
				return invalid("the supported advance needs a destination")
			}
			if !knownArea(o.SubDestination) {
				return Order{}, ErrUnknownArea
			}
		case OrderConvert:
			if !o.SubType.Valid() {
				return invalid("the supported conversion needs a unit type")
			}
			if o.SubType == sub.Type {
				return invalid("a unit must convert into a different type")
			}
		default:
			return invalid("unknown supported order")
		}
	default:
		return invalid("unknown order code")
	}
	if (o.Code == OrderConvoy || o.Code == OrderSupport) && gs.Unit(o.SubUnitID) == nil {
		return Order{}, ErrUnknownUnit
	}

	clean := Order{UnitID: u.ID, Player: player, Code: o.Code}
	switch o.Code {
	case OrderAdvance:
		clean.Destination = o.Destination
	case OrderConvert:
		clean.Type = o.Type
	case OrderConvoy:
		clean.SubUnitID = o.SubUnitID
		clean.SubDestination = o.SubDestination
	case OrderSupport:
		clean.SubUnitID = o.SubUnitID
		clean.SubCode = o.SubCode
		switch o.SubCode {
		case OrderAdvance:
			clean.SubDestination = o.SubDestination
		case OrderConvert:
			clean.SubType = o.SubType
		}
	}
	for i, old := range gs.Orders {
		if old.UnitID == u.ID && old.Player == player {
			gs.Orders[i] = &clean
			return clean, nil
		}
	}
	gs.Orders = append(gs.Orders, &clean)
	return clean, nil
}

// CancelOrder deletes the order a player gave to a unit.
func CancelOrder(gs *GameState, player string, unitID int) error {
	p, err := orderingPlayer(gs, player)
	if err != nil {
		return err
	}
	if gs.Phase != PhaseOrders {
		return ErrWrongPhase
	}
	if p.Done {
		return fmt.Errorf("%s already confirmed: %w", player, ErrNotAllowed)
	}
	for i, o := range gs.Orders {
		if o.UnitID == unitID && o.Player == player {
			gs.Orders = append(gs.Orders[:i:i], gs.Orders[i+1:]...)
			return nil
		}
	}
	return ErrUnknownUnit
}

// OrdersOf returns the orders a player gave this phase.
func OrdersOf(gs *GameState, player string) []*Order {
	var out []*Order
	for _, o := range gs.Orders {
		if o.Player == player {
			out = append(out, o)
		}
	}
	return out
}

// ConfirmPhase finishes the player's part of the phase. In an Orders phase
// its orders and expenses are confirmed; orders that break the movement
// rules are dropped and returned.
func ConfirmPhase(gs *GameState, sc *Scenario, player string) ([]Order, error) {
	p, err := orderingPlayer(gs, player)
	if err != nil {
		return nil, err
	}
	if p.Done {
		return nil, fmt.Errorf("%s already done: %w", player, ErrNotAllowed)
	}
	var voided []Order
	switch gs.Phase {
	case PhaseOrders:
		kept := make([]*Order, 0, len(gs.Orders))
		for _, o := range gs.Orders {
			if o.Player != player {
				kept = append(kept, o)
				continue
			}
			if !IsPossible(gs, sc, o) {
				voided = append(voided, *o)
				continue
			}
			o.Confirmed = true
			kept = append(kept, o)
		}
		gs.Orders = kept
		for _, e := range gs.Expenses {
			if e.Player == player {
				e.Confirmed = true
			}
		}
	case PhaseReinforce:
		if gs.Config.Finances {
			if p.Step != 1 {
				return nil, fmt.Errorf("units must be paid first: %w", ErrNotAllowed)
			}
		} else if UnitsToPlace(gs, sc, player) != 0 {
			return nil, fmt.Errorf("%s must reinforce: %w", player, ErrNotAllowed)
		}
	case PhaseRetreats, PhaseStrategic:
	default:
		return nil, ErrWrongPhase
	}
	EndPhase(gs, player, false)
	return voided, nil
}

// UndoActions reopens the Orders phase for a player who confirmed too
// early. Orders and expenses go back to unconfirmed.
func UndoActions(gs *GameState, player string) error {
	p, err := orderingPlayer(gs, player)
	if err != nil {
		return err
	}
	if gs.Phase != PhaseOrders {
		return ErrWrongPhase
	}
	if !p.Done || p.Surrendered {
		return fmt.Errorf("%s has nothing to undo: %w", player, ErrNotAllowed)
	}
	for _, o := range gs.Orders {
		if o.Player == player {
			o.Confirmed = false
		}
	}
	for _, e := range gs.Expenses {
		if e.Player == player {
			e.Confirmed = false
		}
	}
	p.Done = false
	return nil
}
