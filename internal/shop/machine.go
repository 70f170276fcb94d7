package shop

import (
	"fmt"
	"log"

	"storebot-tg-app/internal/models"
)

// allowedTransitions maps each transaction state to the states it may
// move to. Missing or empty entries are terminal.
var allowedTransitions = map[models.TxState][]models.TxState{
	models.StateOpen:            {models.StateAwaitingPayment, models.StateCancelled},
	models.StateAwaitingPayment: {models.StatePaid, models.StateCancelled},
	models.StatePaid:            {models.StateCompleted, models.StateCancelled},
	models.StateCompleted:       {models.StateReviewed},
	models.StateReviewed:        {},
	models.StateCancelled:       {},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to models.TxState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidState when the move is not allowed.
func ValidateTransition(from, to models.TxState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: cannot go from %s to %s", ErrInvalidState, from, to)
	}
	return nil
}

// Recorder is the durable review ledger as the machine sees it.
type Recorder interface {
	Record(buyerID int64, amount float64) error
}

// SessionStore is the slice of the session store the machine needs.
type SessionStore interface {
	Cart(buyerID int64) models.Cart
	CartTotal(buyerID int64) float64
	Transaction(buyerID int64) *models.TransactionRecord
	ClearSession(buyerID int64)
}

// Review is what gets published to the reviews channel after a
// successful submission.
type Review struct {
	BuyerID int64
	Rating  int
	Text    string
	Cart    models.Cart
	Total   float64
	Method  models.PaymentMethod
}

// Machine drives a buyer session through the purchase flow. It owns no
// state itself; everything lives in the store and the ledger.
type Machine struct {
	store  SessionStore
	ledger Recorder
	admins map[int64]bool
	logger *log.Logger
}

func NewMachine(logger *log.Logger, st SessionStore, ledger Recorder, adminIDs []int64) *Machine {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Machine{store: st, ledger: ledger, admins: admins, logger: logger}
}

// IsAdmin reports whether the actor is in the static admin set.
func (m *Machine) IsAdmin(actorID int64) bool {
	return m.admins[actorID]
}

func (m *Machine) record(buyerID int64) (*models.TransactionRecord, error) {
	tx := m.store.Transaction(buyerID)
	if tx == nil {
		return nil, fmt.Errorf("%w: no open session for buyer %d", ErrNotFound, buyerID)
	}
	return tx, nil
}

func (m *Machine) requireOwner(actorID, buyerID int64) error {
	if actorID != buyerID {
		return fmt.Errorf("%w: only the ticket owner can do this", ErrUnauthorized)
	}
	return nil
}

// ChoosePayment finalizes the cart and records the chosen method.
// Guard: owner only, cart non-empty, method accepted.
func (m *Machine) ChoosePayment(actorID, buyerID int64, method models.PaymentMethod) error {
	if err := m.requireOwner(actorID, buyerID); err != nil {
		return err
	}
	if !method.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}
	tx, err := m.record(buyerID)
	if err != nil {
		return err
	}
	if err := ValidateTransition(tx.State, models.StateAwaitingPayment); err != nil {
		return err
	}
	if len(m.store.Cart(buyerID)) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	tx.Method = method
	tx.State = models.StateAwaitingPayment
	return nil
}

// MarkPaid is the buyer's self-declaration that money was sent. The
// bot never verifies payment itself; that is what CompleteDeal is for.
func (m *Machine) MarkPaid(actorID, buyerID int64) error {
	if err := m.requireOwner(actorID, buyerID); err != nil {
		return err
	}
	tx, err := m.record(buyerID)
	if err != nil {
		return err
	}
	if err := ValidateTransition(tx.State, models.StatePaid); err != nil {
		return err
	}
	if tx.Method == "" {
		return fmt.Errorf("%w: choose a payment method first", ErrInvalidState)
	}
	tx.Paid = true
	tx.State = models.StatePaid
	return nil
}

// CompleteDeal is the admin confirmation that payment really arrived.
func (m *Machine) CompleteDeal(actorID, buyerID int64) error {
	if !m.IsAdmin(actorID) {
		return fmt.Errorf("%w: only an admin can complete the deal", ErrUnauthorized)
	}
	tx, err := m.record(buyerID)
	if err != nil {
		return err
	}
	if err := ValidateTransition(tx.State, models.StateCompleted); err != nil {
		return err
	}
	tx.Completed = true
	tx.State = models.StateCompleted
	return nil
}

// SubmitReview accepts the buyer's rating and text, writes the ledger
// and clears the session. The session is gone afterwards, so a second
// submission for the same deal cannot reach the ledger.
func (m *Machine) SubmitReview(actorID, buyerID int64, rating int, text string) (*Review, error) {
	if err := m.requireOwner(actorID, buyerID); err != nil {
		return nil, err
	}
	tx, err := m.record(buyerID)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(tx.State, models.StateReviewed); err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: star rating must be between 1 and 5", ErrValidation)
	}
	review := &Review{
		BuyerID: buyerID,
		Rating:  rating,
		Text:    text,
		Cart:    m.store.Cart(buyerID),
		Total:   m.store.CartTotal(buyerID),
		Method:  tx.Method,
	}
	tx.State = models.StateReviewed
	if err := m.ledger.Record(buyerID, review.Total); err != nil {
		// The review still stands; the counters are best effort
		// once the state already moved.
		m.logger.Printf("ledger write failed for buyer %d: %v", buyerID, err)
	}
	m.store.ClearSession(buyerID)
	return review, nil
}

// Cancel tears down the transaction. Owner or admin, and only before
// the deal completed.
func (m *Machine) Cancel(actorID, buyerID int64) error {
	if actorID != buyerID && !m.IsAdmin(actorID) {
		return fmt.Errorf("%w: only the ticket owner or an admin can cancel", ErrUnauthorized)
	}
	tx, err := m.record(buyerID)
	if err != nil {
		return err
	}
	if err := ValidateTransition(tx.State, models.StateCancelled); err != nil {
		return err
	}
	tx.State = models.StateCancelled
	return nil
}
