package machiavelli

import (
	"reflect"
	"testing"
)

func TestResolve_Standoff(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	a := place(gs, Army, "florence", "AA")
	b := place(gs, Army, "milan", "CC")

	resolve(gs, sc,
		Order{UnitID: a.ID, Code: OrderAdvance, Destination: "BB"},
		Order{UnitID: b.ID, Code: OrderAdvance, Destination: "BB"},
	)

	if a.Area != "AA" || b.Area != "CC" {
		t.Errorf("units moved: %s, %s", a.Area, b.Area)
	}
	if !gs.Area("BB").Standoff {
		t.Error("BB should be a standoff area")
	}
}

func TestResolve_SupportedAttackDisbandsTrappedUnit(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	attacker := place(gs, Army, "florence", "AA")
	supporter := place(gs, Army, "florence", "EE")
	defender := place(gs, Army, "naples", "BB")
	place(gs, Army, "milan", "CC")

	tr := resolve(gs, sc,
		Order{UnitID: attacker.ID, Code: OrderAdvance, Destination: "BB"},
		Order{UnitID: supporter.ID, Code: OrderSupport, SubUnitID: attacker.ID, SubCode: OrderAdvance, SubDestination: "BB"},
	)

	if attacker.Area != "BB" {
		t.Errorf("attacker in %s, want BB", attacker.Area)
	}
	if gs.Unit(defender.ID) != nil {
		t.Error("defender without retreats should be disbanded")
	}
	if !hasEvent(tr.events, EventUnitDisbanded) {
		t.Error("expected unit_disbanded event")
	}
}

func TestResolve_DislodgedUnitMustRetreat(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	attacker := place(gs, Army, "florence", "AA")
	supporter := place(gs, Army, "florence", "CC")
	defender := place(gs, Army, "naples", "BB")

	tr := resolve(gs, sc,
		Order{UnitID: attacker.ID, Code: OrderAdvance, Destination: "BB"},
		Order{UnitID: supporter.ID, Code: OrderSupport, SubUnitID: attacker.ID, SubCode: OrderAdvance, SubDestination: "BB"},
		Order{UnitID: defender.ID, Code: OrderHold},
	)

	if defender.MustRetreat != "AA" {
		t.Fatalf("MustRetreat = %q, want AA", defender.MustRetreat)
	}
	if got := PossibleRetreats(gs, sc, defender); !reflect.DeepEqual(got, []string{"EE"}) {
		t.Errorf("PossibleRetreats = %v, want [EE]", got)
	}
	if !hasEvent(tr.events, EventUnitMustRetreat) {
		t.Error("expected unit_must_retreat event")
	}
	if !tr.pendingRetreats() {
		t.Error("pendingRetreats should be true")
	}
}

func TestResolve_BrokenSupport(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	attacker := place(gs, Army, "florence", "AA")
	supporter := place(gs, Army, "florence", "CC")
	defender := place(gs, Army, "naples", "BB")
	cutter := place(gs, Army, "milan", "FF")

	resolve(gs, sc,
		Order{UnitID: attacker.ID, Code: OrderAdvance, Destination: "BB"},
		Order{UnitID: supporter.ID, Code: OrderSupport, SubUnitID: attacker.ID, SubCode: OrderAdvance, SubDestination: "BB"},
		Order{UnitID: cutter.ID, Code: OrderAdvance, Destination: "CC"},
	)

	if attacker.Area != "AA" || defender.Area != "BB" || defender.MustRetreat != "" {
		t.Errorf("attack with a cut support succeeded: attacker %s, defender %s", attacker.Area, defender.Area)
	}
	if cutter.Area != "FF" {
		t.Errorf("cutter moved to %s", cutter.Area)
	}
}

func TestResolve_Rotation(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	a := place(gs, Army, "florence", "BB")
	b := place(gs, Army, "milan", "CC")
	c := place(gs, Army, "naples", "EE")

	resolve(gs, sc,
		Order{UnitID: a.ID, Code: OrderAdvance, Destination: "CC"},
		Order{UnitID: b.ID, Code: OrderAdvance, Destination: "EE"},
		Order{UnitID: c.ID, Code: OrderAdvance, Destination: "BB"},
	)

	want := map[int]string{a.ID: "CC", b.ID: "EE", c.ID: "BB"}
	for id, area := range want {
		if got := gs.Unit(id).Area; got != area {
			t.Errorf("unit %d in %s, want %s", id, got, area)
		}
	}
}

func TestResolve_ExchangeIsStandoff(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	a := place(gs, Army, "florence", "BB")
	b := place(gs, Army, "milan", "CC")

	resolve(gs, sc,
		Order{UnitID: a.ID, Code: OrderAdvance, Destination: "CC"},
		Order{UnitID: b.ID, Code: OrderAdvance, Destination: "BB"},
	)

	if a.Area != "BB" || b.Area != "CC" {
		t.Errorf("units swapped: %s, %s", a.Area, b.Area)
	}
	if !gs.Area("BB").Standoff || !gs.Area("CC").Standoff {
		t.Error("both areas should be standoffs")
	}
}

func TestResolve_Convoy(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	army := place(gs, Army, "florence", "AA")
	f1 := place(gs, Fleet, "florence", "S1")
	f2 := place(gs, Fleet, "florence", "S2")

	resolve(gs, sc,
		Order{UnitID: army.ID, Code: OrderAdvance, Destination: "FF"},
		Order{UnitID: f1.ID, Code: OrderConvoy, SubUnitID: army.ID, SubDestination: "FF"},
		Order{UnitID: f2.ID, Code: OrderConvoy, SubUnitID: army.ID, SubDestination: "FF"},
	)

	if army.Area != "FF" {
		t.Errorf("army in %s, want FF", army.Area)
	}
}

func TestResolve_UnreachableAdvanceIsDropped(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	army := place(gs, Army, "florence", "AA")

	resolve(gs, sc, Order{UnitID: army.ID, Code: OrderAdvance, Destination: "FF"})

	if army.Area != "AA" {
		t.Errorf("army in %s, want AA", army.Area)
	}
}

func TestResolve_SiegeTakesTwoTurns(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	besieger := place(gs, Army, "florence", "CC")
	garrison := place(gs, Garrison, "milan", "CC")

	tr := resolve(gs, sc, Order{UnitID: besieger.ID, Code: OrderBesiege})
	if !besieger.Besieging {
		t.Fatal("siege should have started")
	}
	if gs.Unit(garrison.ID) == nil {
		t.Fatal("garrison removed after one turn")
	}
	if !hasEvent(tr.events, EventSiegeStarted) {
		t.Error("expected siege_started event")
	}

	tr = resolve(gs, sc, Order{UnitID: besieger.ID, Code: OrderBesiege})
	if gs.Unit(garrison.ID) != nil {
		t.Error("garrison should surrender on the second turn")
	}
	if besieger.Besieging {
		t.Error("Besieging should be cleared after the surrender")
	}
	if !hasEvent(tr.events, EventUnitSurrendered) {
		t.Error("expected unit_surrendered event")
	}
}

func TestResolve_InterruptedSiegeRestarts(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	besieger := place(gs, Army, "florence", "CC")
	garrison := place(gs, Garrison, "milan", "CC")

	resolve(gs, sc, Order{UnitID: besieger.ID, Code: OrderBesiege})
	resolve(gs, sc, Order{UnitID: besieger.ID, Code: OrderHold})
	if besieger.Besieging {
		t.Fatal("siege should be discontinued")
	}
	resolve(gs, sc, Order{UnitID: besieger.ID, Code: OrderBesiege})
	if gs.Unit(garrison.ID) == nil {
		t.Error("garrison fell to a restarted siege")
	}
}

func TestResolve_AutoGarrison(t *testing.T) {
	tests := []struct {
		name     string
		occupied bool
		want     UnitType
	}{
		{"empty city", false, Garrison},
		{"city already garrisoned", true, Army},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, sc := testGame(t, Configuration{}, true)
			army := place(gs, Army, "florence", "AA")
			if tt.occupied {
				place(gs, Garrison, "florence", "AA")
			}
			resolve(gs, sc, Order{UnitID: army.ID, Code: OrderConvert, Type: Garrison})
			if army.Type != tt.want {
				t.Errorf("type = %s, want %s", army.Type, tt.want)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	a := place(gs, Army, "florence", "AA")
	b := place(gs, Army, "milan", "CC")
	c := place(gs, Army, "naples", "EE")
	orders := []Order{
		{UnitID: a.ID, Code: OrderAdvance, Destination: "BB"},
		{UnitID: b.ID, Code: OrderAdvance, Destination: "BB"},
		{UnitID: c.ID, Code: OrderSupport, SubUnitID: b.ID, SubCode: OrderAdvance, SubDestination: "BB"},
	}

	first := gs.Clone()
	second := gs.Clone()
	t1 := resolve(first, sc, orders...)
	t2 := resolve(second, sc, orders...)

	if !reflect.DeepEqual(first, second) {
		t.Error("same orders produced different states")
	}
	if !reflect.DeepEqual(t1.log, t2.log) {
		t.Error("same orders produced different logs")
	}
	if got := first.Unit(b.ID).Area; got != "BB" {
		t.Errorf("supported army in %s, want BB", got)
	}
}

func TestResolve_LogRecordsOutcomes(t *testing.T) {
	gs, sc := testGame(t, Configuration{}, true)
	mover := place(gs, Army, "florence", "DD")
	converter := place(gs, Army, "florence", "AA")
	a := place(gs, Army, "milan", "CC")
	b := place(gs, Army, "naples", "FF")

	tr := resolve(gs, sc,
		Order{UnitID: mover.ID, Code: OrderAdvance, Destination: "EE"},
		Order{UnitID: converter.ID, Code: OrderConvert, Type: Garrison},
		Order{UnitID: a.ID, Code: OrderAdvance, Destination: "BB"},
		Order{UnitID: b.ID, Code: OrderAdvance, Destination: "CC"},
	)

	for _, want := range []string{
		"florence A DD - EE",
		"florence A DD - EE: invades",
		"florence A AA = G: converts",
		"naples A FF - CC: invades",
		"milan A CC - BB: invades",
	} {
		found := false
		for _, line := range tr.log {
			if line == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("log lacks %q:\n%v", want, tr.log)
		}
	}
}

func TestResolve_StandoffIsIdempotent(t *testing.T) {
	tests := []struct {
		name  string
		again func(a, b *Unit) []Order
	}{
		{"same orders", func(a, b *Unit) []Order {
			return []Order{
				{UnitID: a.ID, Code: OrderAdvance, Destination: "BB"},
				{UnitID: b.ID, Code: OrderAdvance, Destination: "BB"},
			}
		}},
		{"one side retries", func(a, b *Unit) []Order {
			return []Order{{UnitID: a.ID, Code: OrderAdvance, Destination: "BB"}}
		}},
		{"no orders", func(a, b *Unit) []Order { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, sc := testGame(t, Configuration{}, true)
			a := place(gs, Army, "florence", "AA")
			b := place(gs, Army, "milan", "CC")
			resolve(gs, sc,
				Order{UnitID: a.ID, Code: OrderAdvance, Destination: "BB"},
				Order{UnitID: b.ID, Code: OrderAdvance, Destination: "BB"},
			)
			units := gs.Clone().Units
			standoffs := standoffAreas(gs)

			resolve(gs, sc, tt.again(a, b)...)

			if !reflect.DeepEqual(gs.Units, units) {
				t.Errorf("units changed on the second pass: %v", gs.Units)
			}
			if got := standoffAreas(gs); !reflect.DeepEqual(got, standoffs) {
				t.Errorf("standoffs = %v, want %v", got, standoffs)
			}
		})
	}
}

func standoffAreas(gs *GameState) []string {
	var out []string
	for _, code := range gs.areaCodes() {
		if gs.Area(code).Standoff {
			out = append(out, code)
		}
	}
	return out
}

func TestResolve_ConditionedInvasions(t *testing.T) {
	type move struct {
		player, from, to string // empty to holds
	}
	tests := []struct {
		name  string
		moves []move
		want  []string // final area of each unit, in order
	}{
		{
			name:  "three-cycle",
			moves: []move{{"florence", "BB", "CC"}, {"milan", "CC", "EE"}, {"naples", "EE", "BB"}},
			want:  []string{"CC", "EE", "BB"},
		},
		{
			name:  "four-cycle with one player twice",
			moves: []move{{"florence", "BB", "CC"}, {"milan", "CC", "FF"}, {"naples", "FF", "EE"}, {"florence", "EE", "BB"}},
			want:  []string{"CC", "FF", "EE", "BB"},
		},
		{
			name:  "chain into a vacated area",
			moves: []move{{"florence", "AA", "BB"}, {"milan", "BB", "CC"}},
			want:  []string{"BB", "CC"},
		},
		{
			name:  "chain blocked by a holding unit",
			moves: []move{{"florence", "AA", "BB"}, {"milan", "BB", "CC"}, {"naples", "CC", ""}},
			want:  []string{"AA", "BB", "CC"},
		},
		{
			name:  "own unit that does not leave",
			moves: []move{{"florence", "AA", "BB"}, {"florence", "BB", ""}},
			want:  []string{"AA", "BB"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, sc := testGame(t, Configuration{}, true)
			var units []*Unit
			var orders []Order
			for _, m := range tt.moves {
				u := place(gs, Army, m.player, m.from)
				units = append(units, u)
				if m.to != "" {
					orders = append(orders, Order{UnitID: u.ID, Code: OrderAdvance, Destination: m.to})
				}
			}

			resolve(gs, sc, orders...)

			for i, u := range units {
				if got := gs.Unit(u.ID).Area; got != tt.want[i] {
					t.Errorf("unit from %s in %s, want %s", tt.moves[i].from, got, tt.want[i])
				}
			}
		})
	}
}
