package machiavelli

import "fmt"

// Assassin is a token that lets Owner attempt one murder of Target's
// leader.
type Assassin struct {
	Owner  string
	Target string
}

// Assassination is a paid attempt on a player's leader.
type Assassination struct {
	Killer string
	Target string
	Ducats int
}

// assassinationCosts are the accepted payments. Paying the n-th amount
// rolls n dice.
var assassinationCosts = []int{10, 18, 25, 31, 36, 40, 43, 46, 48, 50}

// AssassinationDice returns how many dice a payment buys, 0 when the
// amount is not a valid price.
func AssassinationDice(ducats int) int {
	for i, c := range assassinationCosts {
		if c == ducats {
			return i + 1
		}
	}
	return 0
}

// AddAssassination spends an assassin token and ducats on an attempt.
func AddAssassination(gs *GameState, killer, target string, ducats int) error {
	if !gs.Config.Assassinations {
		return ErrRuleDisabled
	}
	if gs.Phase != PhaseOrders {
		return ErrWrongPhase
	}
	k := gs.Player(killer)
	v := gs.Player(target)
	if k == nil || v == nil || v.IsAutonomous() {
		return ErrUnknownPlayer
	}
	if k.Done {
		return fmt.Errorf("player already done: %w", ErrNotAllowed)
	}
	if ducats > k.Ducats {
		return ErrInsufficientDucats
	}
	if AssassinationDice(ducats) == 0 {
		return fmt.Errorf("%d ducats is not a valid price: %w", ducats, ErrNotAllowed)
	}
	if v.Eliminated {
		return fmt.Errorf("%s is eliminated: %w", target, ErrNotAllowed)
	}
	if killer == target {
		return fmt.Errorf("cannot kill yourself: %w", ErrNotAllowed)
	}
	idx := -1
	for i, a := range gs.Assassins {
		if a.Owner == killer && a.Target == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no assassin for %s: %w", target, ErrNotAllowed)
	}
	gs.Assassins = append(gs.Assassins[:idx:idx], gs.Assassins[idx+1:]...)
	gs.Assassinations = append(gs.Assassinations, Assassination{Killer: killer, Target: target, Ducats: ducats})
	k.Ducats -= ducats
	return nil
}

func (t *turn) processAssassinations() {
	gs := t.gs
	killed := make(map[string]bool)
	for _, a := range gs.Assassinations {
		t.logf("%s spends %d ducats to kill %s", a.Killer, a.Ducats, a.Target)
		if killed[a.Target] {
			t.logf("%s already killed", a.Target)
			continue
		}
		n := AssassinationDice(a.Ducats)
		if n < 1 {
			t.logf("%d ducats are not enough", a.Ducats)
			continue
		}
		if t.dice.AtLeastOneSix(n) {
			t.logf("attempt on %s succeeds", a.Target)
			if p := gs.Player(a.Target); p != nil {
				t.assassinate(p)
				killed[a.Target] = true
			}
		} else {
			t.logf("attempt on %s fails", a.Target)
		}
	}
	gs.Assassinations = nil
}

func (t *turn) assassinate(p *Player) {
	p.Assassinated = true
	t.emit(Event{Kind: EventPlayerAssassinated, Player: p.ID})
}

// cancelAssassinatedOrders drops the orders of assassinated players and
// rolls for rebellions in their land areas.
func (t *turn) cancelAssassinatedOrders() {
	gs := t.gs
	for _, p := range gs.UserPlayers() {
		if !p.Assassinated {
			continue
		}
		var kept []*Order
		for _, o := range gs.Orders {
			if o.Player != p.ID {
				kept = append(kept, o)
			}
		}
		gs.Orders = kept
		t.logf("orders of %s are cancelled", p.ID)
		for _, ga := range gs.ControlledAreas(p.ID) {
			if !t.b.Area(ga.Code).IsSea {
				t.checkAssassinationRebellion(ga.Code, 0)
			}
		}
	}
}
