package machiavelli

import (
	"fmt"
	"math"
	"sort"
)

// ExpenseType is the kind of a ducat expense.
type ExpenseType int

const (
	ExpenseFamineRelief ExpenseType = iota
	ExpensePacifyRebellion
	ExpenseConqueredRebellion
	ExpenseHomeRebellion
	ExpenseCounterBribe
	ExpenseDisbandAutonomous
	ExpenseBuyAutonomous
	ExpenseToAutonomous
	ExpenseDisbandEnemy
	ExpenseBuyEnemy
	ExpenseDiplomatOwn
	ExpenseDiplomatForeign
)

var expenseCost = map[ExpenseType]int{
	ExpenseFamineRelief:       3,
	ExpensePacifyRebellion:    12,
	ExpenseConqueredRebellion: 9,
	ExpenseHomeRebellion:      15,
	ExpenseCounterBribe:       3,
	ExpenseDisbandAutonomous:  6,
	ExpenseBuyAutonomous:      9,
	ExpenseToAutonomous:       9,
	ExpenseDisbandEnemy:       12,
	ExpenseBuyEnemy:           18,
	ExpenseDiplomatOwn:        1,
	ExpenseDiplomatForeign:    3,
}

// IsBribe reports whether the expense targets a unit to disband, buy or
// release it.
func (t ExpenseType) IsBribe() bool {
	return t >= ExpenseDisbandAutonomous && t <= ExpenseBuyEnemy
}

func (t ExpenseType) needsArea() bool {
	switch t {
	case ExpenseFamineRelief, ExpensePacifyRebellion, ExpenseConqueredRebellion,
		ExpenseHomeRebellion, ExpenseDiplomatOwn, ExpenseDiplomatForeign:
		return true
	}
	return false
}

// Expense is money a player spends during an Orders phase. Ducats may
// exceed the minimum cost; the highest bribe on a unit wins.
type Expense struct {
	ID        int
	Player    string
	Type      ExpenseType
	Ducats    int
	Area      string
	UnitID    int
	Confirmed bool
}

// DefaultUnitCost is the price of a regular unit.
const DefaultUnitCost = 3

// ExpenseCost returns the minimum price of an expense.
func ExpenseCost(gs *GameState, sc *Scenario, t ExpenseType, unitID int, area string) int {
	base, ok := expenseCost[t]
	if !ok {
		return 0
	}
	if t.IsBribe() {
		u := gs.Unit(unitID)
		if u == nil {
			return base
		}
		k := 1
		if u.Type == Garrison && sc.Board.Area(u.Area).GarrisonIncome > 1 {
			k = 2
		}
		return k * u.Loyalty * base
	}
	if (t == ExpenseConqueredRebellion || t == ExpenseHomeRebellion) && gs.Config.ReligiousWar {
		if ga := gs.Area(area); ga != nil && ga.Player != "" {
			p := gs.Player(ga.Player)
			a := sc.Board.Area(area)
			if p != nil && p.Religion != "" && a.Religion != "" && p.Religion != a.Religion {
				return base - 3
			}
		}
	}
	return base
}

// AddExpense validates an expense and takes the ducats from the player.
func AddExpense(gs *GameState, sc *Scenario, e Expense) (*Expense, error) {
	if !gs.Config.Finances {
		return nil, ErrRuleDisabled
	}
	if gs.Phase != PhaseOrders {
		return nil, ErrWrongPhase
	}
	p := gs.Player(e.Player)
	if p == nil || p.IsAutonomous() {
		return nil, ErrUnknownPlayer
	}
	if p.Done {
		return nil, fmt.Errorf("player already done: %w", ErrNotAllowed)
	}
	if _, ok := expenseCost[e.Type]; !ok {
		return nil, fmt.Errorf("unknown expense type %d: %w", e.Type, ErrNotAllowed)
	}
	if err := validateExpense(gs, sc, p, &e); err != nil {
		return nil, err
	}
	if cost := ExpenseCost(gs, sc, e.Type, e.UnitID, e.Area); e.Ducats < cost {
		return nil, fmt.Errorf("expense costs at least %d ducats: %w", cost, ErrInsufficientDucats)
	}
	if e.Ducats > p.Ducats {
		return nil, ErrInsufficientDucats
	}
	gs.NextExpenseID++
	e.ID = gs.NextExpenseID
	e.Confirmed = false
	p.Ducats -= e.Ducats
	ne := &e
	gs.Expenses = append(gs.Expenses, ne)
	return ne, nil
}

func validateExpense(gs *GameState, sc *Scenario, p *Player, e *Expense) error {
	if e.Type.needsArea() {
		e.UnitID = 0
		ga := gs.Area(e.Area)
		if ga == nil {
			return ErrUnknownArea
		}
		switch e.Type {
		case ExpenseFamineRelief:
			if !ga.Famine {
				return fmt.Errorf("no famine in %s: %w", e.Area, ErrNotAllowed)
			}
		case ExpensePacifyRebellion:
			if gs.RebellionIn(e.Area) == nil {
				return fmt.Errorf("no rebellion in %s: %w", e.Area, ErrNotAllowed)
			}
		case ExpenseConqueredRebellion, ExpenseHomeRebellion:
			if ga.Player == "" {
				return fmt.Errorf("%s is not controlled by anyone: %w", e.Area, ErrNotAllowed)
			}
			home := ga.HomeOf == ga.Player
			if e.Type == ExpenseConqueredRebellion && home {
				return fmt.Errorf("%s is part of its controller's home country: %w", e.Area, ErrNotAllowed)
			}
			if e.Type == ExpenseHomeRebellion && !home {
				return fmt.Errorf("%s is not in its controller's home country: %w", e.Area, ErrNotAllowed)
			}
		case ExpenseDiplomatOwn, ExpenseDiplomatForeign:
			if sc.Board.Area(e.Area).IsSea {
				return fmt.Errorf("no diplomats at sea: %w", ErrNotAllowed)
			}
			if own := ga.Player == p.ID; own != (e.Type == ExpenseDiplomatOwn) {
				return fmt.Errorf("wrong diplomat expense for %s: %w", e.Area, ErrNotAllowed)
			}
		}
		return nil
	}

	e.Area = ""
	u := gs.Unit(e.UnitID)
	if u == nil {
		return ErrUnknownUnit
	}
	owner := gs.Player(u.Player)
	switch e.Type {
	case ExpenseDisbandAutonomous, ExpenseBuyAutonomous:
		if u.Type != Garrison || !owner.IsAutonomous() {
			return fmt.Errorf("unit %d is not an autonomous garrison: %w", u.ID, ErrNotAllowed)
		}
	case ExpenseToAutonomous, ExpenseDisbandEnemy, ExpenseBuyEnemy:
		if u.Player == p.ID {
			return fmt.Errorf("cannot bribe own unit: %w", ErrNotAllowed)
		}
		if owner.IsAutonomous() {
			return fmt.Errorf("unit %d is not an enemy unit: %w", u.ID, ErrNotAllowed)
		}
		if e.Type == ExpenseToAutonomous && u.Type != Garrison {
			return fmt.Errorf("unit %d is not a garrison: %w", u.ID, ErrNotAllowed)
		}
	}
	if e.Type.IsBribe() && !canReachForBribe(gs, sc, p.ID, u) {
		return fmt.Errorf("unit %d is too far away to bribe: %w", u.ID, ErrNotAllowed)
	}
	return nil
}

// canReachForBribe reports whether the player controls, or has a unit in,
// the unit's area or an area next to it.
func canReachForBribe(gs *GameState, sc *Scenario, player string, u *Unit) bool {
	areas := append([]string{u.Area}, sc.Board.Borders(u.Area)...)
	for _, code := range areas {
		if gs.Area(code).Player == player {
			return true
		}
		for _, v := range gs.UnitsIn(code) {
			if v.Player == player {
				return true
			}
		}
	}
	return false
}

// UndoExpense cancels an expense and refunds it.
func UndoExpense(gs *GameState, player string, id int) error {
	for _, e := range gs.Expenses {
		if e.ID == id {
			if e.Player != player {
				return ErrNotOwner
			}
			gs.undoExpense(e)
			return nil
		}
	}
	return fmt.Errorf("expense %d: %w", id, ErrNotAllowed)
}

func (gs *GameState) undoExpense(e *Expense) {
	if e.Type == ExpenseBuyAutonomous || e.Type == ExpenseBuyEnemy {
		var kept []*Order
		for _, o := range gs.Orders {
			if !(o.Player == e.Player && o.UnitID == e.UnitID) {
				kept = append(kept, o)
			}
		}
		gs.Orders = kept
	}
	if p := gs.Player(e.Player); p != nil {
		p.Ducats += e.Ducats
	}
	var out []*Expense
	for _, x := range gs.Expenses {
		if x.ID != e.ID {
			out = append(out, x)
		}
	}
	gs.Expenses = out
}

func (t *turn) processExpenses() {
	gs := t.gs
	for _, e := range append([]*Expense(nil), gs.Expenses...) {
		if !e.Confirmed {
			gs.undoExpense(e)
		}
	}
	for _, e := range gs.Expenses {
		if e.Type == ExpenseFamineRelief {
			if ga := gs.Area(e.Area); ga != nil {
				t.logf("%s relieves famine in %s", e.Player, e.Area)
				ga.Famine = false
			}
		}
	}
	for _, e := range gs.Expenses {
		if e.Type == ExpensePacifyRebellion {
			t.logf("%s pacifies the rebellion in %s", e.Player, e.Area)
			gs.removeRebellion(e.Area)
		}
	}
	for _, e := range gs.Expenses {
		if e.Type == ExpenseConqueredRebellion || e.Type == ExpenseHomeRebellion {
			if err := t.placeRebellion(e.Area); err != nil {
				t.logf("rebellion paid by %s fails: %v", e.Player, err)
			}
		}
	}
	for _, e := range gs.Expenses {
		if e.Type == ExpenseDiplomatOwn || e.Type == ExpenseDiplomatForeign {
			t.placeDiplomat(e.Player, e.Area)
		}
	}

	counter := make(map[int]int)
	for _, e := range gs.Expenses {
		if e.Type == ExpenseCounterBribe {
			counter[e.UnitID] += e.Ducats
		}
	}
	var bribes []*Expense
	for _, e := range gs.Expenses {
		if !e.Type.IsBribe() || gs.Unit(e.UnitID) == nil {
			continue
		}
		if ExpenseCost(gs, t.sc, e.Type, e.UnitID, "")+counter[e.UnitID] > e.Ducats {
			t.logf("bribe by %s on unit %d is countered", e.Player, e.UnitID)
			continue
		}
		bribes = append(bribes, e)
	}

	// highest bribe on each unit wins; ties go to the lowest player id
	sort.SliceStable(bribes, func(i, j int) bool {
		if bribes[i].UnitID != bribes[j].UnitID {
			return bribes[i].UnitID < bribes[j].UnitID
		}
		if bribes[i].Ducats != bribes[j].Ducats {
			return bribes[i].Ducats > bribes[j].Ducats
		}
		return bribes[i].Player < bribes[j].Player
	})
	var chosen []*Expense
	for i, e := range bribes {
		if i == 0 || bribes[i-1].UnitID != e.UnitID {
			chosen = append(chosen, e)
		}
	}
	for _, c := range chosen {
		u := gs.Unit(c.UnitID)
		if u == nil {
			continue
		}
		switch c.Type {
		case ExpenseDisbandAutonomous, ExpenseDisbandEnemy:
			t.logf("%s bribes %s to disband", c.Player, u.Describe())
			t.emit(Event{Kind: EventUnitBribed, Player: u.Player, Target: c.Player, Area: u.Area, Unit: u.String()})
			gs.removeUnit(u.ID)
		case ExpenseBuyAutonomous, ExpenseBuyEnemy:
			t.logf("%s buys %s", c.Player, u.Describe())
			t.emit(Event{Kind: EventUnitBribed, Player: u.Player, Target: c.Player, Area: u.Area, Unit: u.String()})
			u.Player = c.Player
			u.Paid = false
			t.checkRebellion(u)
		case ExpenseToAutonomous:
			if u.Type != Garrison || gs.Player(AutonomousPlayer) == nil {
				continue
			}
			t.logf("%s turns %s autonomous", c.Player, u.Describe())
			t.emit(Event{Kind: EventUnitBribed, Player: u.Player, Target: c.Player, Area: u.Area, Unit: u.String()})
			u.Player = AutonomousPlayer
			u.Paid = true
		}
	}
	gs.Expenses = nil
}

// Income returns what a player earns in a Fall, given the variable
// income die.
func Income(gs *GameState, sc *Scenario, player string, die int) int {
	p := gs.Player(player)
	if p == nil {
		return 0
	}
	b := sc.Board
	rebels := make(map[string]bool)
	for _, r := range gs.Rebellions {
		if r.Player == player {
			rebels[r.Area] = true
		}
	}

	income := 0
	for _, ga := range gs.ControlledAreas(player) {
		if ga.Famine || rebels[ga.Code] {
			continue
		}
		a := b.Area(ga.Code)
		income += a.ControlIncome
		if a.MajorCity {
			income += Ducats(a.Code, die, false)
		}
	}

	besieged := make(map[string]bool)
	for _, u := range gs.Units {
		if u.Besieging {
			besieged[u.Area] = true
		}
	}
	for _, u := range gs.UnitsOf(player) {
		ga := gs.Area(u.Area)
		if u.Type != Garrison {
			if !ga.Famine && ga.Player != player {
				income++
			}
			continue
		}
		if ga.Player == player && !ga.Famine && !rebels[ga.Code] {
			continue
		}
		if besieged[u.Area] {
			continue
		}
		a := b.Area(u.Area)
		income += a.GarrisonIncome
		if a.MajorCity {
			income += Ducats(a.Code, die, false)
		}
	}

	income += Ducats(p.ID, die, p.DoubleIncome)
	if gs.Config.Conquering {
		for _, c := range gs.UserPlayers() {
			if c.Conqueror == player {
				income += Ducats(c.ID, die, c.DoubleIncome)
			}
		}
	}
	if gs.Config.TradeRoutes {
		income += tradeIncome(gs, player)
	}
	return income
}

func (t *turn) assignIncomes() {
	die := t.dice.Roll1d6()
	t.logf("variable income die: %d", die)
	for _, p := range t.gs.ActivePlayers() {
		if i := Income(t.gs, t.sc, p.ID, die); i > 0 {
			p.Ducats += i
			t.logf("%s raises %d ducats", p.ID, i)
			t.emit(Event{Kind: EventIncome, Player: p.ID, Value: i})
		}
	}
}

// Loan is money borrowed from the bank, due in the given season and year.
type Loan struct {
	Player string
	Debt   int
	Season Season
	Year   int
}

// MaxCredit caps what a player may borrow.
const MaxCredit = 25

// Credit returns how many ducats a player may borrow.
func Credit(gs *GameState, player string) int {
	p := gs.Player(player)
	if p == nil || p.Defaulted {
		return 0
	}
	if gs.Config.UnbalancedLoans {
		return MaxCredit
	}
	credit := len(gs.ControlledAreas(player)) + len(gs.UnitsOf(player))
	if credit > MaxCredit {
		credit = MaxCredit
	}
	return credit
}

// BorrowMoney takes a loan for one or two years. Interest is 20% for one
// year and 50% for two.
func BorrowMoney(gs *GameState, player string, ducats, term int) (*Loan, error) {
	if !gs.Config.Lenders {
		return nil, ErrRuleDisabled
	}
	if gs.Phase != PhaseOrders {
		return nil, ErrWrongPhase
	}
	p := gs.Player(player)
	if p == nil || p.IsAutonomous() {
		return nil, ErrUnknownPlayer
	}
	if p.Done {
		return nil, fmt.Errorf("player already done: %w", ErrNotAllowed)
	}
	if gs.Loans[player] != nil {
		return nil, fmt.Errorf("loan must be repaid first: %w", ErrNotAllowed)
	}
	if ducats <= 0 || ducats > Credit(gs, player) {
		return nil, fmt.Errorf("credit is %d ducats: %w", Credit(gs, player), ErrNotAllowed)
	}
	loan := &Loan{Player: player, Season: gs.Season, Year: gs.Year + term}
	switch term {
	case 1:
		loan.Debt = int(math.Ceil(float64(ducats) * 1.2))
	case 2:
		loan.Debt = int(math.Ceil(float64(ducats) * 1.5))
	default:
		return nil, fmt.Errorf("invalid term %d: %w", term, ErrNotAllowed)
	}
	if gs.Loans == nil {
		gs.Loans = make(map[string]*Loan)
	}
	gs.Loans[player] = loan
	p.Ducats += ducats
	return loan, nil
}

// RepayLoan pays back the player's loan in full.
func RepayLoan(gs *GameState, player string) error {
	p := gs.Player(player)
	if p == nil {
		return ErrUnknownPlayer
	}
	loan := gs.Loans[player]
	if loan == nil {
		return fmt.Errorf("no loan to repay: %w", ErrNotAllowed)
	}
	if p.Ducats < loan.Debt {
		return ErrInsufficientDucats
	}
	p.Ducats -= loan.Debt
	delete(gs.Loans, player)
	return nil
}

func (t *turn) checkLoans() {
	gs := t.gs
	for _, id := range gs.PlayerIDs() {
		loan := gs.Loans[id]
		if loan == nil {
			continue
		}
		if gs.Year >= loan.Year && gs.Season >= loan.Season {
			t.logf("%s defaults on a loan of %d ducats", id, loan.Debt)
			t.emit(Event{Kind: EventLoanDefaulted, Player: id, Value: loan.Debt})
			p := gs.Player(id)
			p.Defaulted = true
			t.assassinate(p)
			delete(gs.Loans, id)
		}
	}
}

// GiveDucats transfers money between players.
func GiveDucats(gs *GameState, from, to string, ducats int) error {
	if !gs.Config.Finances {
		return ErrRuleDisabled
	}
	if gs.Phase == PhaseInactive {
		return ErrWrongPhase
	}
	lender := gs.Player(from)
	borrower := gs.Player(to)
	if lender == nil || borrower == nil || from == to {
		return ErrUnknownPlayer
	}
	if ducats <= 0 {
		return fmt.Errorf("invalid amount %d: %w", ducats, ErrNotAllowed)
	}
	if ducats > lender.Ducats {
		return ErrInsufficientDucats
	}
	lender.Ducats -= ducats
	borrower.Ducats += ducats
	return nil
}

// Tax raises extra money from a controlled area. The area suffers famine
// at the end of the season. It returns the ducats raised.
func Tax(gs *GameState, sc *Scenario, player, area string) (int, error) {
	if !gs.Config.Taxation {
		return 0, ErrRuleDisabled
	}
	if gs.Phase != PhaseOrders {
		return 0, ErrWrongPhase
	}
	ga := gs.Area(area)
	if ga == nil {
		return 0, ErrUnknownArea
	}
	if ga.Player != player {
		return 0, fmt.Errorf("%s not controlled by %s: %w", area, player, ErrNotAllowed)
	}
	if ga.Taxed {
		return 0, nil
	}
	if reb := gs.RebellionIn(area); reb != nil && reb.Player == player {
		return 0, nil
	}
	enemies := 0
	for _, u := range gs.UnitsIn(area) {
		if u.Player != player {
			enemies++
		}
	}
	income := sc.Board.Area(area).ControlIncome
	if enemies > 1 || income <= 1 {
		return 0, nil
	}
	ga.Taxed = true
	gs.Player(player).Ducats += income - 1
	return income - 1, nil
}
