package machiavelli

import "time"

// BonusTime is the share of the time limit within which finishing a phase
// earns karma.
const BonusTime = 0.2

func highestKarma(gs *GameState) int {
	highest := 0
	for _, p := range gs.UserPlayers() {
		if !p.Done && !p.Eliminated && p.Karma > highest {
			highest = p.Karma
		}
	}
	return highest
}

// karmaFactor scales the time limit by the karma of the slowest reliable
// player. Good karma buys extra time only for orders.
func karmaFactor(phase Phase, karma int) float64 {
	k := float64(karma)
	if k > 100 {
		if phase == PhaseOrders {
			return 1 + (k-100)/200
		}
		return 1
	}
	return k / 100
}

// NextPhaseChange returns when the current phase will be forced to end.
func NextPhaseChange(gs *GameState) time.Time {
	limit := gs.TimeLimit
	if gs.UsesKarma {
		limit = time.Duration(float64(gs.TimeLimit) * karmaFactor(gs.Phase, highestKarma(gs)))
	}
	if gs.ExtendedDeadline {
		limit += gs.TimeLimit
	}
	return gs.LastPhaseChange.Add(limit)
}

// TimeExceeded reports whether the phase deadline has passed.
func TimeExceeded(gs *GameState, now time.Time) bool {
	if gs.Phase == PhaseInactive {
		return false
	}
	return !now.Before(NextPhaseChange(gs))
}

// InBonusTime reports whether a player finishing now earns a karma bonus.
func InBonusTime(gs *GameState, now time.Time) bool {
	bonus := time.Duration(float64(gs.TimeLimit) * BonusTime)
	return !now.After(gs.LastPhaseChange.Add(bonus))
}

// forcePhaseChange extends the deadline the first time it passes, punishing
// late players. The second time, late players are marked done.
func (t *turn) forcePhaseChange(now time.Time) {
	gs := t.gs
	if !gs.ExtendedDeadline {
		gs.ExtendedDeadline = true
		t.logf("deadline extended")
		for _, p := range gs.UserPlayers() {
			if !p.Done && !p.Eliminated {
				t.checkRevolution(p, now)
			}
		}
		return
	}
	for _, p := range gs.UserPlayers() {
		if !p.Done && !p.Eliminated {
			t.logf("%s forced to end phase", p.ID)
			EndPhase(gs, p.ID, true)
		}
	}
}
