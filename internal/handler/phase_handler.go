package handler

import (
	"net/http"

	"github.com/freeeve/machiavelli/internal/model"
	"github.com/freeeve/machiavelli/internal/service"
)

// PhaseHandler handles the phase history endpoints.
type PhaseHandler struct {
	gameSvc  *service.GameService
	phaseSvc *service.PhaseService
}

// NewPhaseHandler creates a PhaseHandler.
func NewPhaseHandler(gameSvc *service.GameService, phaseSvc *service.PhaseService) *PhaseHandler {
	return &PhaseHandler{gameSvc: gameSvc, phaseSvc: phaseSvc}
}

// ListPhases handles GET /api/v1/games/{id}/phases. Snapshots carry every
// player's secrets, so they are only included once the game is over.
func (h *PhaseHandler) ListPhases(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	game, err := h.gameSvc.GetGame(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	phases, err := h.phaseSvc.ListPhases(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if phases == nil {
		phases = []model.Phase{}
	}
	if game.Status != model.StatusFinished {
		for i := range phases {
			phases[i].State = nil
			phases[i].StateAfter = nil
		}
	}
	writeJSON(w, http.StatusOK, phases)
}

// PhaseEvents handles GET /api/v1/games/{id}/phases/{phase}/events
func (h *PhaseHandler) PhaseEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.phaseSvc.PhaseEvents(r.Context(), r.PathValue("phase"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	gameID := r.PathValue("id")
	out := make([]model.TurnEvent, 0, len(events))
	for _, e := range events {
		if e.GameID == gameID {
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
