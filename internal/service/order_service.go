package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/machiavelli/internal/repository"
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

var (
	ErrNoActivePhase = errors.New("no active phase")
	ErrPlayerDone    = errors.New("you already finished this phase")
)

// OrderInput represents a single movement order from the client.
type OrderInput struct {
	UnitID         int    `json:"unit_id"`
	Code           string `json:"code"`
	Destination    string `json:"destination,omitempty"`
	Type           string `json:"type,omitempty"`
	SubUnitID      int    `json:"sub_unit_id,omitempty"`
	SubCode        string `json:"sub_code,omitempty"`
	SubDestination string `json:"sub_destination,omitempty"`
	SubType        string `json:"sub_type,omitempty"`
}

func (in OrderInput) toEngine() machiavelli.Order {
	return machiavelli.Order{
		UnitID:         in.UnitID,
		Code:           machiavelli.OrderCode(in.Code),
		Destination:    in.Destination,
		Type:           machiavelli.UnitType(in.Type),
		SubUnitID:      in.SubUnitID,
		SubCode:        machiavelli.OrderCode(in.SubCode),
		SubDestination: in.SubDestination,
		SubType:        machiavelli.UnitType(in.SubType),
	}
}

// MoveInput sends a unit to an area, for retreats and strategic movement.
type MoveInput struct {
	UnitID int    `json:"unit_id"`
	Area   string `json:"area"`
}

// ReinforcementInput places, disbands or pays units in a Reinforce phase.
// Under finances Pay lists the units to keep; Units are the new units to
// buy. Without finances Units are placed and Disband lists units to remove.
type ReinforcementInput struct {
	Pay     []int                       `json:"pay,omitempty"`
	Units   []machiavelli.Reinforcement `json:"units,omitempty"`
	Disband []int                       `json:"disband,omitempty"`
}

// ExpenseInput is a ducat expense from the client.
type ExpenseInput struct {
	Type   machiavelli.ExpenseType `json:"type"`
	Ducats int                     `json:"ducats"`
	Area   string                  `json:"area,omitempty"`
	UnitID int                     `json:"unit_id,omitempty"`
}

// OrderService handles everything players send during a phase.
type OrderService struct {
	gameRepo repository.GameRepository
	phases   *PhaseService
	sc       *machiavelli.Scenario
}

// NewOrderService creates an OrderService.
func NewOrderService(gameRepo repository.GameRepository, phases *PhaseService) *OrderService {
	return &OrderService{gameRepo: gameRepo, phases: phases, sc: phases.Scenario()}
}

func notDone(gs *machiavelli.GameState, country string) error {
	if gs.Player(country).Done {
		return ErrPlayerDone
	}
	return nil
}

// SubmitOrders validates and stores movement orders. Either every order is
// accepted or none is.
func (s *OrderService) SubmitOrders(ctx context.Context, gameID, userID string, inputs []OrderInput) ([]machiavelli.Order, error) {
	var accepted []machiavelli.Order
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		if err := notDone(gs, country); err != nil {
			return err
		}
		for _, in := range inputs {
			o, err := machiavelli.SubmitOrder(gs, country, in.toEngine())
			if err != nil {
				return err
			}
			accepted = append(accepted, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// CancelOrder removes the order of one unit.
func (s *OrderService) CancelOrder(ctx context.Context, gameID, userID string, unitID int) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		if err := notDone(gs, country); err != nil {
			return err
		}
		return machiavelli.CancelOrder(gs, country, unitID)
	})
	return err
}

// SubmitRetreats stores retreat orders.
func (s *OrderService) SubmitRetreats(ctx context.Context, gameID, userID string, moves []MoveInput) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		if err := notDone(gs, country); err != nil {
			return err
		}
		for _, m := range moves {
			if err := machiavelli.SubmitRetreat(gs, s.sc, country, m.UnitID, m.Area); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// SubmitStrategic stores strategic movement orders.
func (s *OrderService) SubmitStrategic(ctx context.Context, gameID, userID string, moves []MoveInput) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		if err := notDone(gs, country); err != nil {
			return err
		}
		for _, m := range moves {
			if err := machiavelli.SubmitStrategic(gs, s.sc, country, m.UnitID, m.Area); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// SubmitReinforcements runs the reinforcement step the player is at. Under
// finances a request with Pay pays units; a later one buys new units and
// finishes the phase.
func (s *OrderService) SubmitReinforcements(ctx context.Context, gameID, userID string, in ReinforcementInput) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		if !gs.Config.Finances {
			return machiavelli.SubmitReinforcements(gs, s.sc, country, in.Units, in.Disband)
		}
		if gs.Player(country).Step == 0 {
			if err := machiavelli.PayUnits(gs, country, in.Pay); err != nil {
				return err
			}
			if len(in.Units) == 0 {
				return nil
			}
		}
		return machiavelli.BuyUnits(gs, s.sc, country, in.Units)
	})
	return err
}

// AddExpense records a ducat expense for the Orders phase.
func (s *OrderService) AddExpense(ctx context.Context, gameID, userID string, in ExpenseInput) (*machiavelli.Expense, error) {
	var added *machiavelli.Expense
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		if err := notDone(gs, country); err != nil {
			return err
		}
		var err error
		added, err = machiavelli.AddExpense(gs, s.sc, machiavelli.Expense{
			Player: country,
			Type:   in.Type,
			Ducats: in.Ducats,
			Area:   in.Area,
			UnitID: in.UnitID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UndoExpense takes back an unconfirmed expense.
func (s *OrderService) UndoExpense(ctx context.Context, gameID, userID string, expenseID int) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		return machiavelli.UndoExpense(gs, country, expenseID)
	})
	return err
}

// PlaceDiplomat pays for a diplomat in an area.
func (s *OrderService) PlaceDiplomat(ctx context.Context, gameID, userID, area string, ducats int) (*machiavelli.Expense, error) {
	var added *machiavelli.Expense
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		var err error
		added, err = machiavelli.PlaceDiplomat(gs, s.sc, country, area, ducats)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// AddAssassination pays for an attempt on another country's leader.
func (s *OrderService) AddAssassination(ctx context.Context, gameID, userID, target string, ducats int) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		if err := notDone(gs, country); err != nil {
			return err
		}
		return machiavelli.AddAssassination(gs, country, target, ducats)
	})
	return err
}

// Borrow takes a loan from the bank.
func (s *OrderService) Borrow(ctx context.Context, gameID, userID string, ducats, term int) (*machiavelli.Loan, error) {
	var loan *machiavelli.Loan
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		var err error
		loan, err = machiavelli.BorrowMoney(gs, country, ducats, term)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// RepayLoan pays back the player's loan.
func (s *OrderService) RepayLoan(ctx context.Context, gameID, userID string) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		return machiavelli.RepayLoan(gs, country)
	})
	return err
}

// GiveDucats transfers money to another country.
func (s *OrderService) GiveDucats(ctx context.Context, gameID, userID, to string, ducats int) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		return machiavelli.GiveDucats(gs, country, to, ducats)
	})
	return err
}

// Tax levies a tax on a controlled area and returns the ducats raised.
func (s *OrderService) Tax(ctx context.Context, gameID, userID, area string) (int, error) {
	var raised int
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		var err error
		raised, err = machiavelli.Tax(gs, s.sc, country, area)
		return err
	})
	return raised, err
}

// Excommunicate lets the pope excommunicate a country.
func (s *OrderService) Excommunicate(ctx context.Context, gameID, userID, target string) error {
	_, country, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		return machiavelli.Excommunicate(gs, country, target)
	})
	if err != nil {
		return err
	}
	s.phases.broadcaster.BroadcastGameEvent(gameID, string(machiavelli.EventExcommunicated), map[string]any{
		"country": country,
		"target":  target,
	})
	return nil
}

// Forgive lifts an excommunication.
func (s *OrderService) Forgive(ctx context.Context, gameID, userID, target string) error {
	_, country, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		return machiavelli.Forgive(gs, country, target)
	})
	if err != nil {
		return err
	}
	s.phases.broadcaster.BroadcastGameEvent(gameID, string(machiavelli.EventForgiven), map[string]any{
		"country": country,
		"target":  target,
	})
	return nil
}

// Confirm finishes the player's part of the phase and returns the orders
// that were dropped because they could not be carried out. Finishing early
// earns karma.
func (s *OrderService) Confirm(ctx context.Context, gameID, userID string) ([]machiavelli.Order, error) {
	var voided []machiavelli.Order
	var bonus bool
	gs, country, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		if gs.Player(country).Done {
			return ErrPlayerDone
		}
		var err error
		voided, err = machiavelli.ConfirmPhase(gs, s.sc, country)
		bonus = gs.UsesKarma && machiavelli.InBonusTime(gs, s.phases.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	l := log.With().Str("gameId", gameID).Str("country", country).Logger()
	for _, o := range voided {
		l.Debug().Str("order", o.Format(gs)).Msg("Order voided on confirm")
	}
	if bonus {
		if err := s.gameRepo.AdjustKarma(ctx, userID, 1); err != nil {
			l.Error().Err(err).Msg("Failed to add bonus karma")
		}
	}
	if len(voided) > 0 {
		s.phases.broadcaster.BroadcastUserEvent(userID, gameID, "orders_voided", voided)
	}
	return voided, nil
}

// Undo reopens the Orders phase for a player who confirmed too early.
func (s *OrderService) Undo(ctx context.Context, gameID, userID string) error {
	_, _, err := s.phases.MutateAs(ctx, gameID, userID, func(gs *machiavelli.GameState, country string) error {
		return machiavelli.UndoActions(gs, country)
	})
	return err
}

// State returns the game as the user's country sees it. Users without a
// seat get the public view.
func (s *OrderService) State(ctx context.Context, gameID, userID string) (*machiavelli.GameState, error) {
	gs, err := s.phases.State(ctx, gameID)
	if err != nil {
		return nil, err
	}
	country, _ := countryOf(gs, userID)
	return VisibleState(gs, s.sc, country), nil
}

// Targets lists what one of the user's units may be ordered to do.
func (s *OrderService) Targets(ctx context.Context, gameID, userID string, unitID int) (*machiavelli.OrderTargets, error) {
	gs, err := s.phases.State(ctx, gameID)
	if err != nil {
		return nil, err
	}
	country, err := countryOf(gs, userID)
	if err != nil {
		return nil, err
	}
	targets, err := machiavelli.LegalOrderTargets(gs, s.sc, country, unitID)
	if err != nil {
		return nil, fmt.Errorf("targets of unit %d: %w", unitID, err)
	}
	return targets, nil
}

// Deadline returns when the current phase of a game will be forced to end.
func (s *OrderService) Deadline(ctx context.Context, gameID string) (time.Time, error) {
	gs, err := s.phases.State(ctx, gameID)
	if err != nil {
		return time.Time{}, err
	}
	return machiavelli.NextPhaseChange(gs), nil
}
