package bot

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"storebot-tg-app/internal/config"
	"storebot-tg-app/internal/gateway"
	"storebot-tg-app/internal/shop"
	"storebot-tg-app/internal/store"
	"storebot-tg-app/internal/ticket"
)

type actionFunc func(*gateway.Action) error

type pendingKind int

const (
	pendingQuantity pendingKind = iota
	pendingReview
)

// pendingInput records that the bot is waiting on a free-form reply
// from one buyer in one chat. Quantity entry carries a deadline;
// review entry does not.
type pendingInput struct {
	buyerID  int64
	chatID   int64
	kind     pendingKind
	item     string
	deadline time.Time
}

func (p *pendingInput) expired(now time.Time) bool {
	return !p.deadline.IsZero() && now.After(p.deadline)
}

// Router turns gateway events into state-machine calls and prompt
// renders. All handling runs on the single update-loop goroutine; the
// pending map still takes a mutex because the sweep may someday move
// to a timer goroutine.
type Router struct {
	logger  *log.Logger
	store   *store.Store
	machine *shop.Machine
	tickets *ticket.Manager
	gw      gateway.Gateway

	actions map[gateway.ActionKind]actionFunc
	clock   func() time.Time

	inputTimeout  time.Duration
	reviewsChatID int64

	mu          sync.Mutex
	pending     map[int64]*pendingInput
	prefix      string
	reviewImage string

	payments paymentConfig
}

func NewRouter(logger *log.Logger, cfg *config.Config, st *store.Store, machine *shop.Machine, tickets *ticket.Manager, gw gateway.Gateway) *Router {
	r := &Router{
		logger:        logger,
		store:         st,
		machine:       machine,
		tickets:       tickets,
		gw:            gw,
		clock:         time.Now,
		inputTimeout:  cfg.InputTimeout,
		reviewsChatID: cfg.ReviewsChatID,
		pending:       make(map[int64]*pendingInput),
		prefix:        cfg.CommandPrefix,
		reviewImage:   cfg.ReviewImageURL,
		payments: paymentConfig{
			BTCAddress: cfg.BTCAddress,
			ETHAddress: cfg.ETHAddress,
			LTCAddress: cfg.LTCAddress,
		},
	}
	r.actions = map[gateway.ActionKind]actionFunc{
		gateway.ActionPurchase:     r.onPurchase,
		gateway.ActionSelectItem:   r.onSelectItem,
		gateway.ActionAddMore:      r.onAddMore,
		gateway.ActionFinishCart:   r.onFinishCart,
		gateway.ActionRemoveMenu:   r.onRemoveMenu,
		gateway.ActionRemoveItem:   r.onRemoveItem,
		gateway.ActionChooseMethod: r.onChooseMethod,
		gateway.ActionMarkPaid:     r.onMarkPaid,
		gateway.ActionCompleteDeal: r.onCompleteDeal,
		gateway.ActionLeaveReview:  r.onLeaveReview,
		gateway.ActionCancel:       r.onCancel,
	}
	return r
}

// HandleAction dispatches a button press. Errors become a message in
// the originating chat and never escape the loop.
func (r *Router) HandleAction(a *gateway.Action) {
	r.SweepPending()
	handler, ok := r.actions[a.Kind]
	if !ok {
		r.logger.Printf("unknown action kind %q from %d", a.Kind, a.ActorID)
		r.say(a.ChatID, "Unknown action.")
		return
	}
	if err := handler(a); err != nil {
		r.report(a.ChatID, err)
	}
}

// HandleMessage routes free-form text: a pending-input reply first,
// otherwise a prefix command.
func (r *Router) HandleMessage(m *gateway.Message) {
	r.SweepPending()
	if p := r.pendingFor(m.ActorID, m.ChatID); p != nil {
		r.handlePendingReply(p, m)
		return
	}
	r.handleCommand(m)
}

// SweepPending expires overdue quantity prompts: the partially entered
// item selection is discarded, the cart itself is untouched.
func (r *Router) SweepPending() {
	now := r.clock()
	r.mu.Lock()
	var expired []*pendingInput
	for id, p := range r.pending {
		if p.expired(now) {
			delete(r.pending, id)
			expired = append(expired, p)
		}
	}
	r.mu.Unlock()
	for _, p := range expired {
		r.logger.Printf("quantity entry for %q by buyer %d: %v", p.item, p.buyerID, shop.ErrTimeout)
		r.say(p.chatID, "You took too long to respond. Please restart item selection.")
	}
}

func (r *Router) setPending(p *pendingInput) {
	r.mu.Lock()
	r.pending[p.buyerID] = p
	r.mu.Unlock()
}

func (r *Router) clearPending(buyerID int64) {
	r.mu.Lock()
	delete(r.pending, buyerID)
	r.mu.Unlock()
}

func (r *Router) pendingFor(actorID, chatID int64) *pendingInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.pending[actorID]
	if p == nil || p.chatID != chatID {
		return nil
	}
	return p
}

// ownedTicket resolves the live ticket for a chat and checks the actor
// is its buyer. Admin does not bypass this: cart building and reviews
// are owner-only.
func (r *Router) ownedTicket(a *gateway.Action) (int64, error) {
	t := r.store.Ticket(a.ChatID)
	if t == nil || !t.Open {
		return 0, fmt.Errorf("%w: this can only be used inside a ticket channel", shop.ErrNotFound)
	}
	if t.BuyerID != a.ActorID {
		return 0, shop.ErrUnauthorized
	}
	return t.BuyerID, nil
}

func (r *Router) say(chatID int64, text string) {
	if err := r.gw.Send(gateway.Render{ChatID: chatID, Text: text, Ephemeral: true}); err != nil {
		r.logger.Printf("send to %d: %v", chatID, err)
	}
}

func (r *Router) render(render gateway.Render) {
	if err := r.gw.Send(render); err != nil {
		r.logger.Printf("send to %d: %v", render.ChatID, err)
	}
}

// report converts an error into a user-visible message scoped to the
// chat it came from.
func (r *Router) report(chatID int64, err error) {
	switch {
	case errors.Is(err, shop.ErrUnauthorized):
		r.say(chatID, "You do not have permission to do that.")
	case errors.Is(err, shop.ErrValidation),
		errors.Is(err, shop.ErrNotFound),
		errors.Is(err, shop.ErrInvalidState):
		r.say(chatID, capitalizeReason(err))
	case errors.Is(err, shop.ErrResource):
		r.logger.Printf("gateway resource error: %v", err)
		r.say(chatID, "Something went wrong on our side. Please try again.")
	default:
		r.logger.Printf("unhandled error: %v", err)
		r.say(chatID, "Something went wrong. Please try again.")
	}
}
