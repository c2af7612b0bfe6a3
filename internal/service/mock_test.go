package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/freeeve/machiavelli/internal/model"
)

type mockGameRepo struct {
	mu      sync.Mutex
	games   map[string]*model.Game
	players map[string][]model.GamePlayer
	karma   map[string]int
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:   make(map[string]*model.Game),
		players: make(map[string][]model.GamePlayer),
		karma:   make(map[string]int),
	}
}

func (m *mockGameRepo) Create(_ context.Context, g *model.Game) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	cp.ID = fmt.Sprintf("game-%d", len(m.games)+1)
	cp.Status = model.StatusWaiting
	cp.CreatedAt = time.Now()
	m.games[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Players = append([]model.GamePlayer(nil), m.players[id]...)
	return &cp, nil
}

func (m *mockGameRepo) list(keep func(g *model.Game) bool) []model.Game {
	var result []model.Game
	for _, g := range m.games {
		if keep(g) {
			result = append(result, *g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockGameRepo) ListOpen(_ context.Context) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(g *model.Game) bool { return g.Status == model.StatusWaiting && !g.Private }), nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(g *model.Game) bool {
		for _, p := range m.players[g.ID] {
			if p.UserID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(g *model.Game) bool { return g.Status == model.StatusActive }), nil
}

func (m *mockGameRepo) JoinGame(_ context.Context, gameID, userID, country string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID: gameID, UserID: userID, Country: country, JoinedAt: time.Now(),
	})
	return nil
}

func (m *mockGameRepo) PlayerCount(_ context.Context, gameID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players[gameID]), nil
}

func (m *mockGameRepo) AssignCountries(_ context.Context, gameID string, assignments map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.players[gameID] {
		m.players[gameID][i].Country = assignments[p.UserID]
	}
	if g, ok := m.games[gameID]; ok {
		g.Status = model.StatusActive
		now := time.Now()
		g.StartedAt = &now
	}
	return nil
}

func (m *mockGameRepo) ReplacePlayer(_ context.Context, gameID, country, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.players[gameID] {
		if p.Country == country {
			m.players[gameID][i].UserID = userID
			return nil
		}
	}
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{GameID: gameID, UserID: userID, Country: country})
	return nil
}

func (m *mockGameRepo) SetFinished(_ context.Context, gameID, winner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok {
		g.Status = model.StatusFinished
		g.Winner = winner
	}
	return nil
}

func (m *mockGameRepo) Karma(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.karma[userID]; ok {
		return k, nil
	}
	return 100, nil
}

func (m *mockGameRepo) AdjustKarma(_ context.Context, userID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.karma[userID]; !ok {
		m.karma[userID] = 100
	}
	m.karma[userID] += delta
	return nil
}

func (m *mockGameRepo) setStatus(gameID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[gameID].Status = status
}

type mockPhaseRepo struct {
	mu      sync.Mutex
	phases  []*model.Phase
	events  map[string][]model.TurnEvent
	commits []*model.TurnCommit
	// commitErr makes CommitTurn fail.
	commitErr error
}

func newMockPhaseRepo() *mockPhaseRepo {
	return &mockPhaseRepo{events: make(map[string][]model.TurnEvent)}
}

func (m *mockPhaseRepo) createPhase(gameID string, year int, season, phase string, state json.RawMessage, deadline time.Time) *model.Phase {
	n := 1
	for _, p := range m.phases {
		if p.GameID == gameID {
			n++
		}
	}
	p := &model.Phase{
		ID:        fmt.Sprintf("%s-phase-%d", gameID, n),
		GameID:    gameID,
		Number:    n,
		Year:      year,
		Season:    season,
		Phase:     phase,
		State:     state,
		Deadline:  deadline,
		CreatedAt: time.Now(),
	}
	m.phases = append(m.phases, p)
	return p
}

func (m *mockPhaseRepo) CreatePhase(_ context.Context, gameID string, year int, season, phase string, state json.RawMessage, deadline time.Time) (*model.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.createPhase(gameID, year, season, phase, state, deadline)
	return &cp, nil
}

func (m *mockPhaseRepo) current(gameID string) *model.Phase {
	for i := len(m.phases) - 1; i >= 0; i-- {
		if p := m.phases[i]; p.GameID == gameID && p.ResolvedAt == nil {
			return p
		}
	}
	return nil
}

func (m *mockPhaseRepo) CurrentPhase(_ context.Context, gameID string) (*model.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.current(gameID)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockPhaseRepo) ListPhases(_ context.Context, gameID string) ([]model.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Phase
	for _, p := range m.phases {
		if p.GameID == gameID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPhaseRepo) UpdateDeadline(_ context.Context, phaseID string, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.phases {
		if p.ID == phaseID && p.ResolvedAt == nil {
			p.Deadline = deadline
		}
	}
	return nil
}

func (m *mockPhaseRepo) CommitTurn(_ context.Context, c *model.TurnCommit) (*model.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return nil, m.commitErr
	}
	var phase *model.Phase
	for _, p := range m.phases {
		if p.ID == c.PhaseID {
			phase = p
		}
	}
	if phase == nil || phase.ResolvedAt != nil {
		return nil, fmt.Errorf("phase %s already resolved", c.PhaseID)
	}
	resolved := c.ResolvedAt
	phase.ResolvedAt = &resolved
	phase.StateAfter = c.StateAfter
	phase.Log = c.Log
	phase.Seed = c.Seed
	for _, e := range c.Events {
		e.PhaseID = c.PhaseID
		e.GameID = c.GameID
		m.events[c.PhaseID] = append(m.events[c.PhaseID], e)
	}
	m.commits = append(m.commits, c)
	if c.Next == nil {
		return nil, nil
	}
	cp := *m.createPhase(c.GameID, c.Next.Year, c.Next.Season, c.Next.Phase, c.StateAfter, c.Next.Deadline)
	return &cp, nil
}

func (m *mockPhaseRepo) EventsByPhase(_ context.Context, phaseID string) ([]model.TurnEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[phaseID], nil
}

func (m *mockPhaseRepo) ListExpired(_ context.Context, now time.Time) ([]model.Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[string]*model.Phase)
	for _, p := range m.phases {
		latest[p.GameID] = p
	}
	var out []model.Phase
	for _, p := range latest {
		if p.ResolvedAt == nil && p.Deadline.Before(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockCache struct {
	mu      sync.Mutex
	states  map[string]json.RawMessage
	done    map[string]map[string]bool
	timers  map[string]time.Time
	locks   map[string]string
	renders []json.RawMessage
}

func newMockCache() *mockCache {
	return &mockCache{
		states: make(map[string]json.RawMessage),
		done:   make(map[string]map[string]bool),
		timers: make(map[string]time.Time),
		locks:  make(map[string]string),
	}
}

func (m *mockCache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[gameID] = append(json.RawMessage(nil), state...)
	return nil
}

func (m *mockCache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[gameID], nil
}

func (m *mockCache) MarkDone(_ context.Context, gameID, country string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done[gameID] == nil {
		m.done[gameID] = make(map[string]bool)
	}
	m.done[gameID][country] = true
	return nil
}

func (m *mockCache) UnmarkDone(_ context.Context, gameID, country string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.done[gameID], country)
	return nil
}

func (m *mockCache) DoneCountries(_ context.Context, gameID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for c := range m.done[gameID] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockCache) SetTimer(_ context.Context, gameID string, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[gameID] = deadline
	return nil
}

func (m *mockCache) ClearTimer(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, gameID)
	return nil
}

func (m *mockCache) AcquireLock(_ context.Context, gameID, token string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[gameID]; held {
		return false, nil
	}
	m.locks[gameID] = token
	return true, nil
}

func (m *mockCache) ReleaseLock(_ context.Context, gameID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[gameID] == token {
		delete(m.locks, gameID)
	}
	return nil
}

func (m *mockCache) ClearPhaseData(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.done, gameID)
	delete(m.timers, gameID)
	return nil
}

func (m *mockCache) DeleteGameData(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, gameID)
	delete(m.done, gameID)
	delete(m.timers, gameID)
	return nil
}

func (m *mockCache) EnqueueRender(_ context.Context, job json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders = append(m.renders, job)
	return nil
}

type broadcastCall struct {
	userID string
	gameID string
	kind   string
	data   any
}

type mockBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (m *mockBroadcaster) BroadcastGameEvent(gameID, eventType string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, broadcastCall{gameID: gameID, kind: eventType, data: data})
}

func (m *mockBroadcaster) BroadcastUserEvent(userID, gameID, eventType string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, broadcastCall{userID: userID, gameID: gameID, kind: eventType, data: data})
}

func (m *mockBroadcaster) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.kind
	}
	return out
}

func (m *mockBroadcaster) has(kind string) bool {
	for _, k := range m.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
