package machiavelli

// UnitType is the kind of a military unit.
type UnitType string

const (
	Army     UnitType = "A"
	Fleet    UnitType = "F"
	Garrison UnitType = "G"
)

// Valid reports whether t is one of the three unit types.
func (t UnitType) Valid() bool {
	return t == Army || t == Fleet || t == Garrison
}

func (t UnitType) String() string {
	switch t {
	case Army:
		return "army"
	case Fleet:
		return "fleet"
	case Garrison:
		return "garrison"
	default:
		return "unknown"
	}
}

// Field reports whether t is an army or a fleet, the unit types that
// occupy an area rather than its city.
func (t UnitType) Field() bool {
	return t == Army || t == Fleet
}

// Unit is a military unit on the board. Units keep their ID for their
// whole life so orders can reference them across moves and conversions.
type Unit struct {
	ID          int
	Type        UnitType
	Player      string
	Area        string
	Besieging   bool
	MustRetreat string // code of the area the dislodging attack came from
	Placed      bool
	Paid        bool
	Cost        int
	Power       int
	Loyalty     int
}

func (u *Unit) String() string {
	return string(u.Type) + " " + u.Area
}

// Describe names the unit with its owner, as used in the turn log.
func (u *Unit) Describe() string {
	return u.Player + " " + u.String()
}
