package handler

import "net/http"

// API holds the handlers served under /api/v1.
type API struct {
	Games  *GameHandler
	Orders *OrderHandler
	Phases *PhaseHandler
}

// Mux registers the authenticated routes. Paths are relative to /api/v1.
func (a API) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /games", a.Games.CreateGame)
	mux.HandleFunc("GET /games", a.Games.ListGames)
	mux.HandleFunc("GET /games/{id}", a.Games.GetGame)
	mux.HandleFunc("POST /games/{id}/join", a.Games.JoinGame)
	mux.HandleFunc("POST /games/{id}/start", a.Games.StartGame)
	mux.HandleFunc("POST /games/{id}/surrender", a.Games.Surrender)
	mux.HandleFunc("POST /games/{id}/overthrow", a.Games.Overthrow)

	mux.HandleFunc("GET /games/{id}/state", a.Orders.GetState)
	mux.HandleFunc("GET /games/{id}/units/{unit}/targets", a.Orders.Targets)
	mux.HandleFunc("POST /games/{id}/orders", a.Orders.SubmitOrders)
	mux.HandleFunc("DELETE /games/{id}/orders/{unit}", a.Orders.CancelOrder)
	mux.HandleFunc("POST /games/{id}/retreats", a.Orders.SubmitRetreats)
	mux.HandleFunc("POST /games/{id}/strategic", a.Orders.SubmitStrategic)
	mux.HandleFunc("POST /games/{id}/reinforcements", a.Orders.SubmitReinforcements)
	mux.HandleFunc("POST /games/{id}/expenses", a.Orders.AddExpense)
	mux.HandleFunc("DELETE /games/{id}/expenses/{expense}", a.Orders.UndoExpense)
	mux.HandleFunc("POST /games/{id}/diplomats", a.Orders.PlaceDiplomat)
	mux.HandleFunc("POST /games/{id}/assassinations", a.Orders.AddAssassination)
	mux.HandleFunc("POST /games/{id}/loans", a.Orders.Borrow)
	mux.HandleFunc("DELETE /games/{id}/loans", a.Orders.RepayLoan)
	mux.HandleFunc("POST /games/{id}/transfers", a.Orders.GiveDucats)
	mux.HandleFunc("POST /games/{id}/taxes", a.Orders.Tax)
	mux.HandleFunc("POST /games/{id}/excommunications", a.Orders.Excommunicate)
	mux.HandleFunc("DELETE /games/{id}/excommunications/{country}", a.Orders.Forgive)
	mux.HandleFunc("POST /games/{id}/confirm", a.Orders.Confirm)
	mux.HandleFunc("POST /games/{id}/undo", a.Orders.Undo)

	mux.HandleFunc("GET /games/{id}/phases", a.Phases.ListPhases)
	mux.HandleFunc("GET /games/{id}/phases/{phase}/events", a.Phases.PhaseEvents)
	return mux
}
