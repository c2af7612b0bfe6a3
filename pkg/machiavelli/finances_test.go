package machiavelli

import (
	"errors"
	"testing"
)

func TestIncome(t *testing.T) {
	tests := []struct {
		name  string
		setup func(gs *GameState)
		die   int
		want  int
	}{
		{"home areas and variable income", func(gs *GameState) {}, 3, 6},
		{"double income", func(gs *GameState) { gs.Player("florence").DoubleIncome = true }, 3, 9},
		{"army in enemy land", func(gs *GameState) { place(gs, Army, "florence", "DD") }, 3, 7},
		{"famine", func(gs *GameState) { gs.Area("AA").Famine = true }, 3, 4},
		{"rebellion", func(gs *GameState) {
			gs.Rebellions = append(gs.Rebellions, &Rebellion{Area: "BB", Player: "florence"})
		}, 6, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, sc := testGame(t, Configuration{Finances: true}, false)
			tt.setup(gs)
			if got := Income(gs, sc, "florence", tt.die); got != tt.want {
				t.Errorf("Income = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAssignIncomesInFall(t *testing.T) {
	gs, sc := testGame(t, Configuration{Finances: true}, false)
	gs.Season = Fall

	res, err := ProcessTurn(gs, sc, &scriptedDice{d6: []int{3}}, testStart)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if got := gs.Player("florence").Ducats; got != 16 {
		t.Errorf("florence ducats = %d, want 16", got)
	}
	if !hasEvent(res.Events, EventIncome) {
		t.Error("expected income event")
	}
	if gs.Phase != PhaseReinforce {
		t.Errorf("spring under finances starts with %s", gs.Phase)
	}
}

func TestExpenseCost(t *testing.T) {
	gs, sc := testGame(t, Configuration{Finances: true}, true)
	plain := place(gs, Garrison, AutonomousPlayer, "CC")
	rich := place(gs, Garrison, AutonomousPlayer, "AA")
	rich.Loyalty = 2

	if got := ExpenseCost(gs, sc, ExpenseBuyAutonomous, plain.ID, ""); got != 9 {
		t.Errorf("buy garrison = %d, want 9", got)
	}
	// AA pays 1 ducat for its garrison, so no surcharge
	if got := ExpenseCost(gs, sc, ExpenseDisbandAutonomous, rich.ID, ""); got != 12 {
		t.Errorf("disband loyal garrison = %d, want 12", got)
	}
	if got := ExpenseCost(gs, sc, ExpenseFamineRelief, 0, "AA"); got != 3 {
		t.Errorf("famine relief = %d, want 3", got)
	}
}

func TestAddExpense(t *testing.T) {
	gs, sc := testGame(t, Configuration{Finances: true}, true)
	target := place(gs, Army, "milan", "CC")
	place(gs, Army, "florence", "AA")

	tests := []struct {
		name    string
		expense Expense
		wantErr error
	}{
		{"below minimum", Expense{Player: "florence", Type: ExpenseDisbandEnemy, UnitID: target.ID, Ducats: 5}, ErrInsufficientDucats},
		{"more than owned", Expense{Player: "florence", Type: ExpenseDisbandEnemy, UnitID: target.ID, Ducats: 12}, ErrInsufficientDucats},
		{"own unit", Expense{Player: "milan", Type: ExpenseDisbandEnemy, UnitID: target.ID, Ducats: 12}, ErrNotAllowed},
		{"famine relief without famine", Expense{Player: "florence", Type: ExpenseFamineRelief, Area: "AA", Ducats: 3}, ErrNotAllowed},
		{"unknown area", Expense{Player: "florence", Type: ExpenseFamineRelief, Area: "ZZ", Ducats: 3}, ErrUnknownArea},
		{"autonomous bribe on enemy", Expense{Player: "florence", Type: ExpenseBuyAutonomous, UnitID: target.ID, Ducats: 9}, ErrNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AddExpense(gs, sc, tt.expense); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	gs.Area("AA").Famine = true
	e, err := AddExpense(gs, sc, Expense{Player: "florence", Type: ExpenseFamineRelief, Area: "AA", Ducats: 3})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if gs.Player("florence").Ducats != 7 {
		t.Errorf("ducats = %d, want 7", gs.Player("florence").Ducats)
	}
	if err := UndoExpense(gs, "milan", e.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("undo by another player: err = %v", err)
	}
	if err := UndoExpense(gs, "florence", e.ID); err != nil {
		t.Fatalf("UndoExpense: %v", err)
	}
	if gs.Player("florence").Ducats != 10 || len(gs.Expenses) != 0 {
		t.Errorf("undo left ducats=%d expenses=%d", gs.Player("florence").Ducats, len(gs.Expenses))
	}
}

func TestProcessExpenses_BribeTieGoesToLowestPlayer(t *testing.T) {
	gs, sc := testGame(t, Configuration{Finances: true}, true)
	g := place(gs, Garrison, AutonomousPlayer, "CC")

	for _, p := range []string{"milan", "florence"} {
		e, err := AddExpense(gs, sc, Expense{Player: p, Type: ExpenseBuyAutonomous, UnitID: g.ID, Ducats: 9})
		if err != nil {
			t.Fatalf("AddExpense(%s): %v", p, err)
		}
		e.Confirmed = true
	}
	tr := newTurn(gs, sc, &scriptedDice{})
	tr.processExpenses()

	if g.Player != "florence" {
		t.Errorf("garrison bought by %s, want florence", g.Player)
	}
	if g.Paid {
		t.Error("bought unit must be paid by its new owner")
	}
	if !hasEvent(tr.events, EventUnitBribed) {
		t.Error("expected unit_bribed event")
	}
	if len(gs.Expenses) != 0 {
		t.Error("expenses not cleared")
	}
}

func TestProcessExpenses_CounterBribe(t *testing.T) {
	gs, sc := testGame(t, Configuration{Finances: true}, true)
	target := place(gs, Army, "milan", "CC")
	place(gs, Army, "florence", "BB")
	gs.Player("florence").Ducats = 20

	bribe, err := AddExpense(gs, sc, Expense{Player: "florence", Type: ExpenseDisbandEnemy, UnitID: target.ID, Ducats: 12})
	if err != nil {
		t.Fatalf("bribe: %v", err)
	}
	counter, err := AddExpense(gs, sc, Expense{Player: "milan", Type: ExpenseCounterBribe, UnitID: target.ID, Ducats: 3})
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	bribe.Confirmed = true
	counter.Confirmed = true

	newTurn(gs, sc, &scriptedDice{}).processExpenses()
	if gs.Unit(target.ID) == nil {
		t.Error("countered bribe disbanded the unit")
	}
}

func TestProcessExpenses_UnconfirmedAreRefunded(t *testing.T) {
	gs, sc := testGame(t, Configuration{Finances: true}, true)
	gs.Area("AA").Famine = true
	if _, err := AddExpense(gs, sc, Expense{Player: "florence", Type: ExpenseFamineRelief, Area: "AA", Ducats: 3}); err != nil {
		t.Fatal(err)
	}
	newTurn(gs, sc, &scriptedDice{}).processExpenses()
	if gs.Player("florence").Ducats != 10 {
		t.Errorf("ducats = %d, want refund to 10", gs.Player("florence").Ducats)
	}
	if !gs.Area("AA").Famine {
		t.Error("unconfirmed relief applied")
	}
}

func TestBorrowMoney(t *testing.T) {
	gs, _ := testGame(t, Configuration{Lenders: true}, false)

	if got := Credit(gs, "florence"); got != 3 {
		t.Fatalf("Credit = %d, want 3", got)
	}
	if _, err := BorrowMoney(gs, "florence", 5, 1); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("over credit: err = %v", err)
	}
	if _, err := BorrowMoney(gs, "florence", 3, 3); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("bad term: err = %v", err)
	}
	loan, err := BorrowMoney(gs, "florence", 3, 1)
	if err != nil {
		t.Fatalf("BorrowMoney: %v", err)
	}
	if loan.Debt != 4 || loan.Year != 1501 || loan.Season != Spring {
		t.Errorf("loan = %+v", loan)
	}
	if gs.Player("florence").Ducats != 13 {
		t.Errorf("ducats = %d, want 13", gs.Player("florence").Ducats)
	}
	if _, err := BorrowMoney(gs, "florence", 1, 1); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("second loan: err = %v", err)
	}

	two, err := BorrowMoney(gs, "milan", 3, 2)
	if err != nil {
		t.Fatalf("BorrowMoney two years: %v", err)
	}
	if two.Debt != 5 {
		t.Errorf("two-year debt = %d, want 5", two.Debt)
	}
	if err := RepayLoan(gs, "milan"); err != nil {
		t.Fatalf("RepayLoan: %v", err)
	}
	if gs.Loans["milan"] != nil || gs.Player("milan").Ducats != 8 {
		t.Errorf("repay left loan=%v ducats=%d", gs.Loans["milan"], gs.Player("milan").Ducats)
	}
}

func TestCheckLoans_DefaultAssassinates(t *testing.T) {
	gs, sc := testGame(t, Configuration{Lenders: true}, false)
	if _, err := BorrowMoney(gs, "florence", 3, 1); err != nil {
		t.Fatal(err)
	}
	gs.Year++

	tr := newTurn(gs, sc, &scriptedDice{})
	tr.checkLoans()

	p := gs.Player("florence")
	if !p.Defaulted || !p.Assassinated {
		t.Errorf("florence defaulted=%v assassinated=%v", p.Defaulted, p.Assassinated)
	}
	if gs.Loans["florence"] != nil {
		t.Error("loan should be closed")
	}
	if Credit(gs, "florence") != 0 {
		t.Error("defaulted players get no credit")
	}
	if !hasEvent(tr.events, EventLoanDefaulted) {
		t.Error("expected loan_defaulted event")
	}
}

func TestAssassination(t *testing.T) {
	gs, sc := testGame(t, Configuration{Assassinations: true}, false)
	milanArmy := gs.UnitsOf("milan")[0]

	if err := AddAssassination(gs, "florence", "milan", 9); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("invalid price: err = %v", err)
	}
	if err := AddAssassination(gs, "florence", "florence", 10); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("self: err = %v", err)
	}
	if err := AddAssassination(gs, "florence", "milan", 18); !errors.Is(err, ErrInsufficientDucats) {
		t.Errorf("too expensive: err = %v", err)
	}
	if err := AddAssassination(gs, "florence", "milan", 10); err != nil {
		t.Fatalf("AddAssassination: %v", err)
	}
	if gs.Player("florence").Ducats != 0 {
		t.Errorf("florence ducats = %d, want 0", gs.Player("florence").Ducats)
	}
	gs.Player("florence").Ducats = 10
	if err := AddAssassination(gs, "florence", "milan", 10); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("assassin reused: err = %v", err)
	}
	mustSubmit(t, gs, "milan", Order{UnitID: milanArmy.ID, Code: OrderAdvance, Destination: "BB"})
	confirmAll(t, gs, sc)

	res, err := ProcessTurn(gs, sc, &scriptedDice{six: []bool{true}}, testStart)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !hasEvent(res.Events, EventPlayerAssassinated) {
		t.Error("expected player_assassinated event")
	}
	if got := gs.Unit(milanArmy.ID).Area; got != "CC" {
		t.Errorf("assassinated player's army moved to %s", got)
	}
	if hasEvent(res.Events, EventRebellionStarted) {
		t.Error("a roll of 6 never starts a rebellion")
	}
}

func TestAssassinationRebellion(t *testing.T) {
	tests := []struct {
		name     string
		occupied bool
		die      int
		want     bool
	}{
		{"empty home rebels on 2", false, 2, true},
		{"empty home holds on 3", false, 3, false},
		{"occupied home rebels on 1", true, 1, true},
		{"occupied home holds on 2", true, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, sc := testGame(t, Configuration{Finances: true}, true)
			if tt.occupied {
				place(gs, Army, "florence", "BB")
			}
			tr := newTurn(gs, sc, &scriptedDice{d6: []int{tt.die}})
			if got := tr.checkAssassinationRebellion("BB", 0); got != tt.want {
				t.Errorf("rebellion = %v, want %v", got, tt.want)
			}
			if tt.want && gs.RebellionIn("BB") == nil {
				t.Error("rebellion not placed")
			}
		})
	}
}

func TestTax(t *testing.T) {
	gs, sc := testGame(t, Configuration{Taxation: true}, false)

	got, err := Tax(gs, sc, "florence", "AA")
	if err != nil || got != 1 {
		t.Fatalf("Tax(AA) = %d, %v", got, err)
	}
	if got, _ := Tax(gs, sc, "florence", "AA"); got != 0 {
		t.Errorf("second tax raised %d", got)
	}
	if got, _ := Tax(gs, sc, "florence", "BB"); got != 0 {
		t.Errorf("poor area raised %d", got)
	}
	if _, err := Tax(gs, sc, "florence", "CC"); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("foreign area: err = %v", err)
	}
	if gs.Player("florence").Ducats != 11 {
		t.Errorf("ducats = %d, want 11", gs.Player("florence").Ducats)
	}

	confirmAll(t, gs, sc)
	if _, err := ProcessTurn(gs, sc, &scriptedDice{}, testStart); err != nil {
		t.Fatal(err)
	}
	if ga := gs.Area("AA"); !ga.Famine || ga.Taxed {
		t.Errorf("taxed area after the season: famine=%v taxed=%v", ga.Famine, ga.Taxed)
	}
}

func TestGiveDucats(t *testing.T) {
	gs, _ := testGame(t, Configuration{Finances: true}, false)
	if err := GiveDucats(gs, "florence", "milan", 4); err != nil {
		t.Fatalf("GiveDucats: %v", err)
	}
	if gs.Player("florence").Ducats != 6 || gs.Player("milan").Ducats != 14 {
		t.Error("ducats not transferred")
	}
	if err := GiveDucats(gs, "florence", "milan", 7); !errors.Is(err, ErrInsufficientDucats) {
		t.Errorf("err = %v", err)
	}
}
