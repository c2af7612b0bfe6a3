package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/freeeve/machiavelli/internal/auth"
	"github.com/freeeve/machiavelli/internal/service"
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

// OrderHandler handles everything a player submits during a phase.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

type stateResponse struct {
	State    *machiavelli.GameState `json:"state"`
	Deadline time.Time              `json:"deadline"`
}

// GetState handles GET /api/v1/games/{id}/state
func (h *OrderHandler) GetState(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	gs, err := h.orderSvc.State(r.Context(), gameID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	deadline, err := h.orderSvc.Deadline(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: gs, Deadline: deadline})
}

// Targets handles GET /api/v1/games/{id}/units/{unit}/targets
func (h *OrderHandler) Targets(w http.ResponseWriter, r *http.Request) {
	unitID, ok := intParam(r, "unit")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid unit id")
		return
	}
	targets, err := h.orderSvc.Targets(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), unitID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

// SubmitOrders handles POST /api/v1/games/{id}/orders
func (h *OrderHandler) SubmitOrders(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Orders []service.OrderInput `json:"orders"`
	}
	if err := decodeJSON(r, &req); err != nil || len(req.Orders) == 0 {
		writeError(w, http.StatusBadRequest, "orders are required")
		return
	}
	orders, err := h.orderSvc.SubmitOrders(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.Orders)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// CancelOrder handles DELETE /api/v1/games/{id}/orders/{unit}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	unitID, ok := intParam(r, "unit")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid unit id")
		return
	}
	if err := h.orderSvc.CancelOrder(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), unitID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) moves(w http.ResponseWriter, r *http.Request, submit func(r *http.Request, moves []service.MoveInput) error) {
	var req struct {
		Moves []service.MoveInput `json:"moves"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := submit(r, req.Moves); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitRetreats handles POST /api/v1/games/{id}/retreats
func (h *OrderHandler) SubmitRetreats(w http.ResponseWriter, r *http.Request) {
	h.moves(w, r, func(r *http.Request, moves []service.MoveInput) error {
		return h.orderSvc.SubmitRetreats(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), moves)
	})
}

// SubmitStrategic handles POST /api/v1/games/{id}/strategic
func (h *OrderHandler) SubmitStrategic(w http.ResponseWriter, r *http.Request) {
	h.moves(w, r, func(r *http.Request, moves []service.MoveInput) error {
		return h.orderSvc.SubmitStrategic(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), moves)
	})
}

// SubmitReinforcements handles POST /api/v1/games/{id}/reinforcements
func (h *OrderHandler) SubmitReinforcements(w http.ResponseWriter, r *http.Request) {
	var req service.ReinforcementInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.orderSvc.SubmitReinforcements(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddExpense handles POST /api/v1/games/{id}/expenses
func (h *OrderHandler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var req service.ExpenseInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := h.orderSvc.AddExpense(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UndoExpense handles DELETE /api/v1/games/{id}/expenses/{expense}
func (h *OrderHandler) UndoExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "expense")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}
	if err := h.orderSvc.UndoExpense(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlaceDiplomat handles POST /api/v1/games/{id}/diplomats
func (h *OrderHandler) PlaceDiplomat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Area   string `json:"area"`
		Ducats int    `json:"ducats"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Area == "" {
		writeError(w, http.StatusBadRequest, "area is required")
		return
	}
	e, err := h.orderSvc.PlaceDiplomat(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.Area, req.Ducats)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// AddAssassination handles POST /api/v1/games/{id}/assassinations
func (h *OrderHandler) AddAssassination(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
		Ducats int    `json:"ducats"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	if err := h.orderSvc.AddAssassination(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.Target, req.Ducats); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Borrow handles POST /api/v1/games/{id}/loans
func (h *OrderHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ducats int `json:"ducats"`
		Term   int `json:"term"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	loan, err := h.orderSvc.Borrow(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.Ducats, req.Term)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// RepayLoan handles DELETE /api/v1/games/{id}/loans
func (h *OrderHandler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	if err := h.orderSvc.RepayLoan(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GiveDucats handles POST /api/v1/games/{id}/transfers
func (h *OrderHandler) GiveDucats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To     string `json:"to"`
		Ducats int    `json:"ducats"`
	}
	if err := decodeJSON(r, &req); err != nil || req.To == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}
	if err := h.orderSvc.GiveDucats(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.To, req.Ducats); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tax handles POST /api/v1/games/{id}/taxes
func (h *OrderHandler) Tax(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Area string `json:"area"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Area == "" {
		writeError(w, http.StatusBadRequest, "area is required")
		return
	}
	raised, err := h.orderSvc.Tax(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.Area)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"ducats": raised})
}

// Excommunicate handles POST /api/v1/games/{id}/excommunications
func (h *OrderHandler) Excommunicate(w http.ResponseWriter, r *http.Request) {
	h.papal(w, r, h.orderSvc.Excommunicate)
}

// Forgive handles DELETE /api/v1/games/{id}/excommunications/{country}
func (h *OrderHandler) Forgive(w http.ResponseWriter, r *http.Request) {
	err := h.orderSvc.Forgive(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), r.PathValue("country"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) papal(w http.ResponseWriter, r *http.Request, act func(ctx context.Context, gameID, userID, target string) error) {
	var req struct {
		Target string `json:"target"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	if err := act(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.Target); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Confirm handles POST /api/v1/games/{id}/confirm
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	voided, err := h.orderSvc.Confirm(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if voided == nil {
		voided = []machiavelli.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"voided": voided})
}

// Undo handles POST /api/v1/games/{id}/undo
func (h *OrderHandler) Undo(w http.ResponseWriter, r *http.Request) {
	if err := h.orderSvc.Undo(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
