package machiavelli

import (
	"testing"
	"time"
)

// testBoardYAML is a small board:
//
//	AA - BB - CC
//	|     |  / |
//	DD - EE - FF
//	S1 - S2 (seas along the coast of AA, DD and FF)
const testBoardYAML = `
name: Test
start_year: 1500
cities_to_win: 3
areas:
  - {code: AA, name: Alpha, coast: true, city: true, fortified: true, port: true, control_income: 2, garrison_income: 1, borders: [BB, DD, S1]}
  - {code: BB, name: Beta, city: true, control_income: 1, borders: [AA, CC, EE]}
  - {code: CC, name: Gamma, city: true, fortified: true, control_income: 1, borders: [BB, EE, FF]}
  - {code: DD, name: Delta, coast: true, control_income: 1, borders: [AA, EE, S1, S2]}
  - {code: EE, name: Epsilon, control_income: 1, borders: [BB, CC, DD, FF]}
  - {code: FF, name: Phi, coast: true, city: true, control_income: 1, borders: [CC, EE, S2]}
  - {code: S1, name: Sea One, sea: true, borders: [AA, DD, S2]}
  - {code: S2, name: Sea Two, sea: true, borders: [DD, FF, S1]}
countries:
  - {key: florence, name: Florence, ducats: 10, home: [AA, BB], setup: [{type: A, area: AA}]}
  - {key: milan, name: Milan, ducats: 10, home: [CC, FF], setup: [{type: A, area: CC}]}
  - {key: naples, name: Naples, ducats: 10, home: [DD, EE], setup: [{type: A, area: EE}]}
`

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testScenario(t *testing.T) *Scenario {
	t.Helper()
	sc, err := ParseScenario([]byte(testBoardYAML))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	return sc
}

var testPlayers = map[string]string{
	"florence": "u-florence",
	"milan":    "u-milan",
	"naples":   "u-naples",
}

// testGame starts a game on the test board with the given rules. The setup
// units are removed when empty is set.
func testGame(t *testing.T, cfg Configuration, empty bool) (*GameState, *Scenario) {
	t.Helper()
	sc := testScenario(t)
	gs, err := NewGame(sc, cfg, testPlayers, GameOptions{TimeLimit: 24 * time.Hour}, testStart)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if empty {
		gs.Units = nil
	}
	return gs, sc
}

func place(gs *GameState, typ UnitType, player, area string) *Unit {
	u := gs.newUnit(typ, player, area)
	u.Paid = true
	return u
}

// resolve runs one Orders phase adjudication on gs with the given orders,
// all confirmed.
func resolve(gs *GameState, sc *Scenario, orders ...Order) *turn {
	gs.Orders = nil
	for i := range orders {
		o := orders[i]
		o.Confirmed = true
		if o.Player == "" {
			o.Player = gs.Unit(o.UnitID).Player
		}
		gs.Orders = append(gs.Orders, &o)
	}
	t := newTurn(gs, sc, &scriptedDice{})
	t.processOrders()
	return t
}

func hasEvent(events []Event, kind EventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// confirmAll confirms the phase for every active player still playing it.
func confirmAll(t *testing.T, gs *GameState, sc *Scenario) {
	t.Helper()
	for _, p := range gs.ActivePlayers() {
		if p.Done {
			continue
		}
		if _, err := ConfirmPhase(gs, sc, p.ID); err != nil {
			t.Fatalf("ConfirmPhase(%s): %v", p.ID, err)
		}
	}
}

// scriptedDice returns queued results. Empty queues fall back to a 6 on
// one die, 7 on two dice and a failed six check.
type scriptedDice struct {
	d6   []int
	d2d6 []int
	six  []bool
}

func (d *scriptedDice) Roll1d6() int {
	if len(d.d6) == 0 {
		return 6
	}
	v := d.d6[0]
	d.d6 = d.d6[1:]
	return v
}

func (d *scriptedDice) Roll2d6() int {
	if len(d.d2d6) == 0 {
		return 7
	}
	v := d.d2d6[0]
	d.d2d6 = d.d2d6[1:]
	return v
}

func (d *scriptedDice) AtLeastOneSix(n int) bool {
	if len(d.six) == 0 {
		return false
	}
	v := d.six[0]
	d.six = d.six[1:]
	return v
}
