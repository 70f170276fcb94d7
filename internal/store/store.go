package store

import (
	"fmt"
	"sort"
	"sync"

	"storebot-tg-app/internal/models"
	"storebot-tg-app/internal/shop"
)

// Store owns the catalog and all per-buyer session state (cart,
// transaction record, ticket). All bot mutations happen on the single
// update-loop goroutine; the mutex is there because the web surface
// reads concurrently.
type Store struct {
	mu           sync.RWMutex
	catalog      map[string]models.CatalogItem
	carts        map[int64]models.Cart
	transactions map[int64]*models.TransactionRecord
	tickets      map[int64]*models.Ticket // keyed by chat ID
}

func New() *Store {
	return &Store{
		catalog:      make(map[string]models.CatalogItem),
		carts:        make(map[int64]models.Cart),
		transactions: make(map[int64]*models.TransactionRecord),
		tickets:      make(map[int64]*models.Ticket),
	}
}

// AddItem upserts a catalog item. An edit overwrites in place.
func (s *Store) AddItem(name string, price float64, description string) error {
	if name == "" {
		return fmt.Errorf("%w: item name is empty", shop.ErrValidation)
	}
	if price < 0 {
		return fmt.Errorf("%w: price must be a non-negative number", shop.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[name] = models.CatalogItem{Name: name, Price: price, Description: description}
	return nil
}

func (s *Store) RemoveItem(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.catalog[name]; !ok {
		return fmt.Errorf("%w: item %q not in catalog", shop.ErrNotFound, name)
	}
	delete(s.catalog, name)
	return nil
}

// Items returns a snapshot of the catalog sorted by name.
func (s *Store) Items() []models.CatalogItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.CatalogItem, 0, len(s.catalog))
	for _, it := range s.catalog {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func (s *Store) Item(name string) (models.CatalogItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.catalog[name]
	return it, ok
}

// StartSession creates an empty cart and a fresh transaction record.
// One open session per buyer: a second start while the prior ticket is
// open is rejected.
func (s *Store) StartSession(buyerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[buyerID]; ok {
		return fmt.Errorf("%w: buyer %d already has an open session", shop.ErrValidation, buyerID)
	}
	s.carts[buyerID] = make(models.Cart)
	s.transactions[buyerID] = &models.TransactionRecord{
		BuyerID: buyerID,
		State:   models.StateOpen,
	}
	return nil
}

// AddToCart sets the quantity for an item. Setting the same item twice
// overwrites the prior quantity, it does not add to it.
func (s *Store) AddToCart(buyerID int64, itemName string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", shop.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.catalog[itemName]; !ok {
		return fmt.Errorf("%w: item %q not in catalog", shop.ErrValidation, itemName)
	}
	cart, ok := s.carts[buyerID]
	if !ok {
		return fmt.Errorf("%w: no open session for buyer %d", shop.ErrNotFound, buyerID)
	}
	cart[itemName] = quantity
	return nil
}

func (s *Store) RemoveFromCart(buyerID int64, itemName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[buyerID]
	if !ok {
		return fmt.Errorf("%w: no open session for buyer %d", shop.ErrNotFound, buyerID)
	}
	if _, ok := cart[itemName]; !ok {
		return fmt.Errorf("%w: %q is not in your cart", shop.ErrNotFound, itemName)
	}
	delete(cart, itemName)
	return nil
}

// Cart returns a copy of the buyer's cart, sorted-key iteration is up
// to the caller. Nil if no session.
func (s *Store) Cart(buyerID int64) models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[buyerID]
	if !ok {
		return nil
	}
	out := make(models.Cart, len(cart))
	for k, v := range cart {
		out[k] = v
	}
	return out
}

// CartTotal sums price*quantity over the cart. Empty or missing carts
// total zero.
func (s *Store) CartTotal(buyerID int64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for name, qty := range s.carts[buyerID] {
		if it, ok := s.catalog[name]; ok {
			total += it.Price * float64(qty)
		}
	}
	return total
}

// Transaction returns the live record for the buyer, or nil.
func (s *Store) Transaction(buyerID int64) *models.TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions[buyerID]
}

// ClearSession drops the cart and transaction record. Called when a
// ticket is destroyed or a review lands.
func (s *Store) ClearSession(buyerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, buyerID)
	delete(s.transactions, buyerID)
}

// PutTicket registers an open ticket under its chat ID.
func (s *Store) PutTicket(t *models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ChatID] = t
}

func (s *Store) Ticket(chatID int64) *models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickets[chatID]
}

// TicketByBuyer returns the buyer's open ticket, or nil.
func (s *Store) TicketByBuyer(buyerID int64) *models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if t.BuyerID == buyerID && t.Open {
			return t
		}
	}
	return nil
}

func (s *Store) DropTicket(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, chatID)
}

// OpenTickets snapshots every open ticket.
func (s *Store) OpenTickets() []*models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Ticket
	for _, t := range s.tickets {
		if t.Open {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}
