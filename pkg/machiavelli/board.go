package machiavelli

import (
	"fmt"
	"sort"
)

// Area is a static board space.
type Area struct {
	Code           string
	Name           string
	IsSea          bool
	IsCoast        bool
	IsFortified    bool
	HasPort        bool
	HasCity        bool
	Mixed          bool // land and sea at once, e.g. a lagoon city
	MajorCity      bool // pays variable income from IncomeTable
	ControlIncome  int
	GarrisonIncome int
	Religion       string
}

// Adjacency describes a border between two areas.
type Adjacency struct {
	From    string
	To      string
	FleetOK bool // the coasts connect, so fleets may cross
}

// Board holds the area graph of a scenario. It is read-only once built.
type Board struct {
	Areas       map[string]*Area
	Adjacencies map[string][]Adjacency // keyed by from area code
	codes       []string
}

// NewBoard builds a board from areas and their borders. Borders must be
// listed on both sides.
func NewBoard(areas []*Area, borders map[string][]string, noFleet map[string][]string) (*Board, error) {
	b := &Board{
		Areas:       make(map[string]*Area, len(areas)),
		Adjacencies: make(map[string][]Adjacency, len(areas)),
	}
	for _, a := range areas {
		if a.Code == "" {
			return nil, fmt.Errorf("area %q has no code", a.Name)
		}
		if _, dup := b.Areas[a.Code]; dup {
			return nil, fmt.Errorf("duplicate area %s", a.Code)
		}
		b.Areas[a.Code] = a
		b.codes = append(b.codes, a.Code)
	}
	sort.Strings(b.codes)

	blocked := func(from, to string) bool {
		for _, c := range noFleet[from] {
			if c == to {
				return true
			}
		}
		return false
	}
	for _, from := range b.codes {
		for _, to := range borders[from] {
			if _, ok := b.Areas[to]; !ok {
				return nil, fmt.Errorf("area %s borders unknown area %s", from, to)
			}
			back := false
			for _, c := range borders[to] {
				if c == from {
					back = true
					break
				}
			}
			if !back {
				return nil, fmt.Errorf("border %s-%s is not symmetric", from, to)
			}
			b.Adjacencies[from] = append(b.Adjacencies[from], Adjacency{
				From:    from,
				To:      to,
				FleetOK: !blocked(from, to) && !blocked(to, from),
			})
		}
		sort.Slice(b.Adjacencies[from], func(i, j int) bool {
			return b.Adjacencies[from][i].To < b.Adjacencies[from][j].To
		})
	}
	for code, list := range noFleet {
		if _, ok := b.Areas[code]; !ok {
			return nil, fmt.Errorf("no_fleet entry for unknown area %s", code)
		}
		for _, to := range list {
			if !b.Adjacent(code, to, false) {
				return nil, fmt.Errorf("no_fleet %s-%s is not a border", code, to)
			}
		}
	}
	return b, nil
}

// Area returns the area with the given code, or nil.
func (b *Board) Area(code string) *Area {
	return b.Areas[code]
}

// Codes returns every area code in sorted order.
func (b *Board) Codes() []string {
	return b.codes
}

// Adjacent reports whether from and to share a border. With fleet set the
// coasts must connect as well.
func (b *Board) Adjacent(from, to string, fleet bool) bool {
	for _, adj := range b.Adjacencies[from] {
		if adj.To != to {
			continue
		}
		return !fleet || adj.FleetOK
	}
	return false
}

// Borders returns the codes of the areas bordering code, sorted.
func (b *Board) Borders(code string) []string {
	adjs := b.Adjacencies[code]
	out := make([]string, len(adjs))
	for i, adj := range adjs {
		out[i] = adj.To
	}
	return out
}
