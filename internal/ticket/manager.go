package ticket

import (
	"fmt"
	"log"

	"storebot-tg-app/internal/gateway"
	"storebot-tg-app/internal/models"
	"storebot-tg-app/internal/shop"
	"storebot-tg-app/internal/store"
)

// Manager owns ticket lifecycle: one isolated channel per buyer,
// opened on purchase and torn down on cancel or admin close. Session
// state lives and dies with the ticket.
type Manager struct {
	logger  *log.Logger
	store   *store.Store
	gw      gateway.Gateway
	isAdmin func(int64) bool
}

func NewManager(logger *log.Logger, st *store.Store, gw gateway.Gateway, isAdmin func(int64) bool) *Manager {
	return &Manager{logger: logger, store: st, gw: gw, isAdmin: isAdmin}
}

// Open creates the ticket channel and starts the buyer session.
// One open ticket per buyer: a second purchase while one is open is
// rejected instead of sharing cart state between tickets.
func (m *Manager) Open(buyerID int64, buyerName string) (*models.Ticket, error) {
	if t := m.store.TicketByBuyer(buyerID); t != nil {
		return nil, fmt.Errorf("%w: you already have an open ticket", shop.ErrValidation)
	}
	chatID, err := m.gw.OpenChannel(buyerID, buyerName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shop.ErrResource, err)
	}
	if err := m.store.StartSession(buyerID); err != nil {
		return nil, err
	}
	t := &models.Ticket{BuyerID: buyerID, ChatID: chatID, Open: true}
	m.store.PutTicket(t)
	return t, nil
}

// Close deletes the ticket channel and clears the session. Owner or
// admin only; closing an unknown or already-closed ticket reports
// NotFound.
func (m *Manager) Close(chatID, actorID int64) error {
	t := m.store.Ticket(chatID)
	if t == nil || !t.Open {
		return fmt.Errorf("%w: no open ticket for this channel", shop.ErrNotFound)
	}
	if actorID != t.BuyerID && !m.isAdmin(actorID) {
		return fmt.Errorf("%w: only the ticket owner or an admin can close this ticket", shop.ErrUnauthorized)
	}
	if err := m.gw.CloseChannel(chatID); err != nil {
		return fmt.Errorf("%w: %v", shop.ErrResource, err)
	}
	t.Open = false
	m.store.DropTicket(chatID)
	m.store.ClearSession(t.BuyerID)
	return nil
}

// CloseAll closes every open ticket. Admin only. A channel that fails
// to delete is logged and skipped; the rest still close. Returns the
// number closed.
func (m *Manager) CloseAll(actorID int64) (int, error) {
	if !m.isAdmin(actorID) {
		return 0, fmt.Errorf("%w: only an admin can close all tickets", shop.ErrUnauthorized)
	}
	closed := 0
	for _, t := range m.store.OpenTickets() {
		if err := m.gw.CloseChannel(t.ChatID); err != nil {
			m.logger.Printf("close ticket %d: %v", t.ChatID, err)
			continue
		}
		t.Open = false
		m.store.DropTicket(t.ChatID)
		m.store.ClearSession(t.BuyerID)
		closed++
	}
	return closed, nil
}

// Grant extends ticket visibility to another user. Admin only.
func (m *Manager) Grant(chatID, actorID, targetID int64) error {
	if !m.isAdmin(actorID) {
		return fmt.Errorf("%w: only an admin can add users to a ticket", shop.ErrUnauthorized)
	}
	t := m.store.Ticket(chatID)
	if t == nil || !t.Open {
		return fmt.Errorf("%w: this is not a live ticket channel", shop.ErrNotFound)
	}
	if err := m.gw.Grant(chatID, targetID); err != nil {
		return fmt.Errorf("%w: %v", shop.ErrResource, err)
	}
	return nil
}
