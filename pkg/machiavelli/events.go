package machiavelli

// EventKind names a domain event emitted while a turn is processed.
type EventKind string

const (
	EventGameStarted          EventKind = "game_started"
	EventNewPhase             EventKind = "new_phase"
	EventGameOver             EventKind = "game_over"
	EventUnitDisbanded        EventKind = "unit_disbanded"
	EventUnitSurrendered      EventKind = "unit_surrendered"
	EventSiegeStarted         EventKind = "siege_started"
	EventUnitMustRetreat      EventKind = "unit_must_retreat"
	EventUnitBribed           EventKind = "unit_bribed"
	EventPlayerAssassinated   EventKind = "player_assassinated"
	EventPlayerEliminated     EventKind = "player_eliminated"
	EventCountryConquered     EventKind = "country_conquered"
	EventGovernmentOverthrown EventKind = "government_overthrown"
	EventRevolutionStarted    EventKind = "revolution_started"
	EventKarmaChanged         EventKind = "karma_changed"
	EventLoanDefaulted        EventKind = "loan_defaulted"
	EventRebellionStarted     EventKind = "rebellion_started"
	EventRebellionRepressed   EventKind = "rebellion_repressed"
	EventFamine               EventKind = "famine"
	EventPlague               EventKind = "plague"
	EventStorm                EventKind = "storm"
	EventExcommunicated       EventKind = "excommunicated"
	EventForgiven             EventKind = "forgiven"
	EventDiplomatUncovered    EventKind = "diplomat_uncovered"
	EventIncome               EventKind = "income"
)

// Event is a notification for players and the notification sink. Player
// is the main subject; Target names a second player when relevant.
type Event struct {
	Kind   EventKind
	Player string
	Target string
	Area   string
	Unit   string
	Value  int
}
