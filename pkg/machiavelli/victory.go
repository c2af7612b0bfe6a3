package machiavelli

import "sort"

const (
	// DefaultCitiesToWin applies when a scenario does not set its own goal.
	DefaultCitiesToWin = 15
	// ShortGameCities is the goal of short games, which also require the
	// home cities and extra conquests.
	ShortGameCities = 12
	// TeamGoal is the number of cities a team needs to win.
	TeamGoal = 30

	overthrowPenalty = -10
	surrenderPenalty = -5
)

var scoreBonus = [3]int{30, 10, 5}

// Score is the final result of one seat.
type Score struct {
	UserID   string `json:"user_id"`
	Country  string `json:"country"`
	Cities   int    `json:"cities"`
	Points   int    `json:"points"`
	Position int    `json:"position"`
	Team     int    `json:"team,omitempty"`
}

// teamCities returns the number of cities controlled by each team.
func teamCities(gs *GameState, sc *Scenario) map[int]int {
	out := make(map[int]int)
	for _, p := range gs.UserPlayers() {
		if p.Team > 0 {
			out[p.Team] += gs.CitiesCount(sc, p.ID)
		}
	}
	return out
}

func homeCities(sc *Scenario, player string) []string {
	c := sc.Country(player)
	if c == nil {
		return nil
	}
	var out []string
	for _, code := range c.Home {
		if sc.Board.Area(code).HasCity {
			out = append(out, code)
		}
	}
	return out
}

// checkWinner returns the winning player id, or the team number as a
// second result for team games. A tie on cities between qualifying players
// means nobody wins yet.
func checkWinner(gs *GameState, sc *Scenario) (string, int) {
	if gs.Teams > 1 {
		cities := teamCities(gs, sc)
		for team := 1; team <= gs.Teams; team++ {
			if cities[team] >= TeamGoal {
				return "", team
			}
		}
		return "", 0
	}
	type candidate struct {
		id     string
		cities int
	}
	var players []candidate
	for _, p := range gs.UserPlayers() {
		if !p.Assassinated {
			players = append(players, candidate{p.ID, gs.CitiesCount(sc, p.ID)})
		}
	}
	sort.SliceStable(players, func(i, j int) bool { return players[i].cities > players[j].cities })

	var winner *candidate
	for i := range players {
		c := &players[i]
		if c.cities < gs.CitiesToWin {
			continue
		}
		home := homeCities(sc, c.id)
		if gs.RequireHomeCities {
			missing := false
			for _, code := range home {
				if gs.Areas[code].Player != c.id {
					missing = true
					break
				}
			}
			if missing {
				continue
			}
		}
		if gs.ExtraConqueredCities > 0 {
			isHome := make(map[string]bool, len(home))
			for _, code := range home {
				isHome[code] = true
			}
			extra := 0
			for _, ga := range gs.ControlledAreas(c.id) {
				if sc.Board.Area(ga.Code).HasCity && !isHome[ga.Code] {
					extra++
				}
			}
			if extra < gs.ExtraConqueredCities {
				continue
			}
		}
		if winner == nil {
			winner = c
		} else if c.cities == winner.cities {
			return "", 0
		}
	}
	if winner == nil {
		return "", 0
	}
	return winner.id, 0
}

// assignScores ranks the players by cities. The first three positions get
// a bonus shared among tied players, and governments that lost their seat
// to a revolution are penalized.
func assignScores(gs *GameState, sc *Scenario) []Score {
	var scores []Score
	for _, p := range gs.UserPlayers() {
		scores = append(scores, Score{UserID: p.UserID, Country: p.ID, Cities: gs.CitiesCount(sc, p.ID)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Cities > scores[j].Cities })

	var seconds, thirds int
	for i := range scores {
		if i == 0 || scores[i].Cities != scores[i-1].Cities {
			scores[i].Position = i + 1
		} else {
			scores[i].Position = scores[i-1].Position
		}
		if i == 0 {
			continue
		}
		switch scores[i].Position {
		case 2:
			seconds++
		case 3:
			thirds++
		}
	}
	bonus := scoreBonus
	if seconds > 0 {
		bonus[1] /= seconds
	}
	if thirds > 0 {
		bonus[2] /= thirds
	}
	for i := range scores {
		s := &scores[i]
		s.Points = s.Cities
		if s.Cities == 0 {
			continue
		}
		switch {
		case i == 0:
			s.Points += bonus[0]
		case s.Position == 2:
			s.Points += bonus[1]
		case s.Position == 3:
			s.Points += bonus[2]
		}
	}
	pos := len(scores)
	for _, r := range gs.Revolutions {
		if !r.Overthrow {
			continue
		}
		points := overthrowPenalty
		if r.Voluntary {
			points = surrenderPenalty
		}
		scores = append(scores, Score{UserID: r.Government, Country: r.Country, Points: points, Position: pos})
	}
	return scores
}

func assignTeamScores(gs *GameState, sc *Scenario) []Score {
	cities := teamCities(gs, sc)
	teams := make([]int, 0, len(cities))
	for team := range cities {
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool {
		if cities[teams[i]] != cities[teams[j]] {
			return cities[teams[i]] > cities[teams[j]]
		}
		return teams[i] < teams[j]
	})
	position := make(map[int]int, len(teams))
	pos := 1
	for i, team := range teams {
		if i > 0 && cities[team] < cities[teams[i-1]] {
			pos++
		}
		position[team] = pos
	}
	var scores []Score
	for _, team := range teams {
		for _, p := range gs.UserPlayers() {
			if p.Team == team {
				scores = append(scores, Score{
					UserID:   p.UserID,
					Country:  p.ID,
					Cities:   gs.CitiesCount(sc, p.ID),
					Position: position[team],
					Team:     team,
				})
			}
		}
	}
	return scores
}
