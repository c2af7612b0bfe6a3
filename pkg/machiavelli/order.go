package machiavelli

import (
	"fmt"
	"strings"
)

// OrderCode is the action an order asks a unit to perform.
type OrderCode string

const (
	OrderHold    OrderCode = "H"
	OrderAdvance OrderCode = "-"
	OrderBesiege OrderCode = "B"
	OrderConvert OrderCode = "="
	OrderConvoy  OrderCode = "C"
	OrderSupport OrderCode = "S"
)

func (c OrderCode) String() string {
	switch c {
	case OrderHold:
		return "hold"
	case OrderAdvance:
		return "advance"
	case OrderBesiege:
		return "besiege"
	case OrderConvert:
		return "conversion"
	case OrderConvoy:
		return "convoy"
	case OrderSupport:
		return "support"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known order code.
func (c OrderCode) Valid() bool {
	switch c {
	case OrderHold, OrderAdvance, OrderBesiege, OrderConvert, OrderConvoy, OrderSupport:
		return true
	}
	return false
}

// Order is a movement-phase order. Player is the player giving the order,
// which differs from the unit owner when the unit is being bought.
type Order struct {
	UnitID      int
	Player      string
	Code        OrderCode
	Destination string   // advance
	Type        UnitType // conversion

	// Convoy and support name the order of another unit.
	SubUnitID      int
	SubCode        OrderCode
	SubDestination string
	SubType        UnitType

	Confirmed bool
}

// Format renders the order in the classic notation, e.g. "A PISA - LUC"
// or "F TS S A ROME - NAP".
func (o *Order) Format(gs *GameState) string {
	var sb strings.Builder
	if u := gs.Unit(o.UnitID); u != nil {
		sb.WriteString(u.String())
	} else {
		fmt.Fprintf(&sb, "#%d", o.UnitID)
	}
	sb.WriteString(" ")
	sb.WriteString(string(o.Code))
	switch o.Code {
	case OrderAdvance:
		sb.WriteString(" " + o.Destination)
	case OrderConvert:
		sb.WriteString(" " + string(o.Type))
	case OrderConvoy, OrderSupport:
		sb.WriteString(" ")
		if sub := gs.Unit(o.SubUnitID); sub != nil {
			sb.WriteString(sub.String())
		} else {
			fmt.Fprintf(&sb, "#%d", o.SubUnitID)
		}
		if o.Code == OrderConvoy {
			sb.WriteString(" - " + o.SubDestination)
			break
		}
		if o.SubCode != "" {
			sb.WriteString(" " + string(o.SubCode))
		}
		switch o.SubCode {
		case OrderAdvance:
			sb.WriteString(" " + o.SubDestination)
		case OrderConvert:
			sb.WriteString(" " + string(o.SubType))
		}
	}
	return sb.String()
}

// RetreatOrder moves a dislodged unit. An empty Area disbands it.
type RetreatOrder struct {
	UnitID int
	Area   string
}

// StrategicOrder moves a unit any distance through friendly territory.
type StrategicOrder struct {
	UnitID      int
	Destination string
}
