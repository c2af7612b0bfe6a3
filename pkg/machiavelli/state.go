package machiavelli

import (
	"sort"
	"time"
)

// Season of the game year.
type Season int

const (
	Spring Season = 1
	Summer Season = 2
	Fall   Season = 3
)

func (s Season) String() string {
	switch s {
	case Spring:
		return "spring"
	case Summer:
		return "summer"
	case Fall:
		return "fall"
	default:
		return "unknown"
	}
}

// Phase is the step of a season. Together with the season and the year it
// determines which processing runs next.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseReinforce
	PhaseOrders
	PhaseRetreats
	PhaseStrategic
)

func (p Phase) String() string {
	switch p {
	case PhaseInactive:
		return "inactive"
	case PhaseReinforce:
		return "reinforce"
	case PhaseOrders:
		return "orders"
	case PhaseRetreats:
		return "retreats"
	case PhaseStrategic:
		return "strategic"
	default:
		return "unknown"
	}
}

// AutonomousPlayer owns the neutral units that no user controls.
const AutonomousPlayer = "autonomous"

// Player is a seat in a game. ID is the country key.
type Player struct {
	ID                 string
	UserID             string
	Religion           string
	Ducats             int
	DoubleIncome       bool
	Eliminated         bool
	Assassinated       bool
	Defaulted          bool
	Surrendered        bool
	Done               bool
	Forced             bool // ended the phase by deadline
	Conqueror          string
	MayExcommunicate   bool
	IsExcommunicated   bool
	PopeExcommunicated bool
	HasSentenced       bool
	Team               int
	Karma              int
	Step               int // reinforcement step under finances: 0 pay, 1 buy
}

// IsAutonomous reports whether p is the neutral player.
func (p *Player) IsAutonomous() bool {
	return p.ID == AutonomousPlayer
}

// GameArea is the mutable per-game state of a board area.
type GameArea struct {
	Code     string
	Player   string // controller, empty when uncontrolled
	HomeOf   string
	Standoff bool
	Famine   bool
	Storm    bool
	Taxed    bool
	Years    int // consecutive years of control, for variable home countries
}

// GameState is the complete state of a running game.
type GameState struct {
	Scenario string
	Year     int
	Season   Season
	Phase    Phase
	Config   Configuration

	CitiesToWin          int
	RequireHomeCities    bool
	ExtraConqueredCities int
	Teams                int

	TimeLimit        time.Duration
	LastPhaseChange  time.Time
	ExtendedDeadline bool
	UsesKarma        bool
	Private          bool

	Players         map[string]*Player
	Areas           map[string]*GameArea
	Units           []*Unit
	NextUnitID      int
	Orders          []*Order
	RetreatOrders   []RetreatOrder
	StrategicOrders []StrategicOrder
	Expenses        []*Expense
	NextExpenseID   int
	Rebellions      []*Rebellion
	Loans           map[string]*Loan
	Assassins       []Assassin
	Assassinations  []Assassination
	Diplomats       []Diplomat
	Routes          []*Route
	Revolutions     []*Revolution
	Scores          []Score

	Winner   string
	Finished bool
}

// Unit returns the unit with the given id, or nil.
func (gs *GameState) Unit(id int) *Unit {
	for _, u := range gs.Units {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// Player returns the player with the given id, or nil.
func (gs *GameState) Player(id string) *Player {
	return gs.Players[id]
}

// Area returns the game area with the given code, or nil.
func (gs *GameState) Area(code string) *GameArea {
	return gs.Areas[code]
}

// PlayerIDs returns all player ids, including the autonomous one, sorted.
func (gs *GameState) PlayerIDs() []string {
	ids := make([]string, 0, len(gs.Players))
	for id := range gs.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UserPlayers returns the non-autonomous players sorted by id.
func (gs *GameState) UserPlayers() []*Player {
	var out []*Player
	for _, id := range gs.PlayerIDs() {
		if p := gs.Players[id]; !p.IsAutonomous() {
			out = append(out, p)
		}
	}
	return out
}

// ActivePlayers returns the user players still in the game.
func (gs *GameState) ActivePlayers() []*Player {
	var out []*Player
	for _, p := range gs.UserPlayers() {
		if !p.Eliminated {
			out = append(out, p)
		}
	}
	return out
}

// UnitsIn returns the units in an area.
func (gs *GameState) UnitsIn(area string) []*Unit {
	var out []*Unit
	for _, u := range gs.Units {
		if u.Area == area {
			out = append(out, u)
		}
	}
	return out
}

// UnitsOf returns the units of a player.
func (gs *GameState) UnitsOf(player string) []*Unit {
	var out []*Unit
	for _, u := range gs.Units {
		if u.Player == player {
			out = append(out, u)
		}
	}
	return out
}

// FieldUnitIn returns the army or fleet in an area, or nil.
func (gs *GameState) FieldUnitIn(area string) *Unit {
	for _, u := range gs.Units {
		if u.Area == area && u.Type.Field() {
			return u
		}
	}
	return nil
}

// GarrisonIn returns the garrison in an area, or nil.
func (gs *GameState) GarrisonIn(area string) *Unit {
	for _, u := range gs.Units {
		if u.Area == area && u.Type == Garrison {
			return u
		}
	}
	return nil
}

// ControlledAreas returns the areas controlled by a player, sorted by code.
func (gs *GameState) ControlledAreas(player string) []*GameArea {
	var out []*GameArea
	for _, code := range gs.areaCodes() {
		if a := gs.Areas[code]; a.Player == player {
			out = append(out, a)
		}
	}
	return out
}

// CitiesCount returns how many cities a player controls.
func (gs *GameState) CitiesCount(sc *Scenario, player string) int {
	n := 0
	for _, a := range gs.ControlledAreas(player) {
		if sc.Board.Area(a.Code).HasCity {
			n++
		}
	}
	return n
}

func (gs *GameState) areaCodes() []string {
	codes := make([]string, 0, len(gs.Areas))
	for code := range gs.Areas {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (gs *GameState) newUnit(t UnitType, player, area string) *Unit {
	gs.NextUnitID++
	u := &Unit{
		ID:      gs.NextUnitID,
		Type:    t,
		Player:  player,
		Area:    area,
		Placed:  true,
		Cost:    DefaultUnitCost,
		Power:   1,
		Loyalty: 1,
	}
	gs.Units = append(gs.Units, u)
	return u
}

// removeUnit deletes a unit together with everything referencing it.
func (gs *GameState) removeUnit(id int) {
	units := make([]*Unit, 0, len(gs.Units))
	for _, u := range gs.Units {
		if u.ID != id {
			units = append(units, u)
		}
	}
	gs.Units = units

	orders := make([]*Order, 0, len(gs.Orders))
	for _, o := range gs.Orders {
		if o.UnitID != id && o.SubUnitID != id {
			orders = append(orders, o)
		}
	}
	gs.Orders = orders

	var retreats []RetreatOrder
	for _, r := range gs.RetreatOrders {
		if r.UnitID != id {
			retreats = append(retreats, r)
		}
	}
	gs.RetreatOrders = retreats

	var strategic []StrategicOrder
	for _, s := range gs.StrategicOrders {
		if s.UnitID != id {
			strategic = append(strategic, s)
		}
	}
	gs.StrategicOrders = strategic

	var expenses []*Expense
	for _, e := range gs.Expenses {
		if e.UnitID != id {
			expenses = append(expenses, e)
		}
	}
	gs.Expenses = expenses
}

// Clone returns a deep copy of the game state. Turn processing runs on a
// clone so a failed turn leaves the original untouched.
func (gs *GameState) Clone() *GameState {
	c := *gs
	c.Players = make(map[string]*Player, len(gs.Players))
	for id, p := range gs.Players {
		cp := *p
		c.Players[id] = &cp
	}
	c.Areas = make(map[string]*GameArea, len(gs.Areas))
	for code, a := range gs.Areas {
		ca := *a
		c.Areas[code] = &ca
	}
	c.Units = make([]*Unit, len(gs.Units))
	for i, u := range gs.Units {
		cu := *u
		c.Units[i] = &cu
	}
	c.Orders = make([]*Order, len(gs.Orders))
	for i, o := range gs.Orders {
		co := *o
		c.Orders[i] = &co
	}
	c.RetreatOrders = append([]RetreatOrder(nil), gs.RetreatOrders...)
	c.StrategicOrders = append([]StrategicOrder(nil), gs.StrategicOrders...)
	c.Expenses = make([]*Expense, len(gs.Expenses))
	for i, e := range gs.Expenses {
		ce := *e
		c.Expenses[i] = &ce
	}
	c.Rebellions = make([]*Rebellion, len(gs.Rebellions))
	for i, r := range gs.Rebellions {
		cr := *r
		c.Rebellions[i] = &cr
	}
	c.Loans = make(map[string]*Loan, len(gs.Loans))
	for id, l := range gs.Loans {
		cl := *l
		c.Loans[id] = &cl
	}
	c.Assassins = append([]Assassin(nil), gs.Assassins...)
	c.Assassinations = append([]Assassination(nil), gs.Assassinations...)
	c.Diplomats = append([]Diplomat(nil), gs.Diplomats...)
	c.Routes = make([]*Route, len(gs.Routes))
	for i, r := range gs.Routes {
		cr := *r
		cr.Areas = append([]string(nil), r.Areas...)
		cr.Ends = append([]string(nil), r.Ends...)
		c.Routes[i] = &cr
	}
	c.Revolutions = make([]*Revolution, len(gs.Revolutions))
	for i, r := range gs.Revolutions {
		cr := *r
		if r.Active != nil {
			t := *r.Active
			cr.Active = &t
		}
		c.Revolutions[i] = &cr
	}
	c.Scores = append([]Score(nil), gs.Scores...)
	return &c
}
