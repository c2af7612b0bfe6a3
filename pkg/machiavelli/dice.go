package machiavelli

import "math/rand"

// Dice is the source of every random decision the engine makes. Conflict
// resolution never consults it.
type Dice interface {
	Roll1d6() int
	Roll2d6() int
	AtLeastOneSix(n int) bool
}

// RandDice rolls dice from a seeded generator so a turn can be replayed.
type RandDice struct {
	rng *rand.Rand
}

// NewDice returns dice seeded with seed.
func NewDice(seed int64) *RandDice {
	return &RandDice{rng: rand.New(rand.NewSource(seed))}
}

func (d *RandDice) rollDie(sides int) int {
	return d.rng.Intn(sides) + 1
}

// Roll1d6 returns a value in 1..6.
func (d *RandDice) Roll1d6() int {
	return d.rollDie(6)
}

// Roll2d6 returns the sum of two independent d6, 2..12.
func (d *RandDice) Roll2d6() int {
	return d.rollDie(6) + d.rollDie(6)
}

// AtLeastOneSix rolls n dice and reports whether any of them shows a 6.
func (d *RandDice) AtLeastOneSix(n int) bool {
	hit := false
	for i := 0; i < n; i++ {
		if d.rollDie(6) == 6 {
			hit = true
		}
	}
	return hit
}
