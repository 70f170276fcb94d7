package bot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"storebot-tg-app/internal/gateway"
	"storebot-tg-app/internal/models"
	"storebot-tg-app/internal/shop"
)

// onPurchase opens a ticket for the buyer and starts item selection
// inside it.
func (r *Router) onPurchase(a *gateway.Action) error {
	t, err := r.tickets.Open(a.ActorID, a.ActorName)
	if err != nil {
		return err
	}
	r.render(gateway.Render{
		ChatID: t.ChatID,
		Text:   "Welcome to your ticket! Let's proceed with your purchase.",
		Choices: []gateway.Choice{
			{Label: "Cancel", Kind: gateway.ActionCancel},
		},
	})
	r.promptItemSelection(t.ChatID)
	return nil
}

func (r *Router) promptItemSelection(chatID int64) {
	items := r.store.Items()
	if len(items) == 0 {
		r.say(chatID, "The catalog is empty right now. Please check back later.")
		return
	}
	choices := make([]gateway.Choice, 0, len(items))
	for _, it := range items {
		choices = append(choices, gateway.Choice{
			Label:   fmt.Sprintf("%s — $%.2f", it.Name, it.Price),
			Kind:    gateway.ActionSelectItem,
			Payload: it.Name,
		})
	}
	r.render(gateway.Render{
		ChatID:  chatID,
		Text:    "Please select an item to purchase:",
		Choices: choices,
	})
}

// onSelectItem starts quantity entry for the chosen item. The reply is
// awaited with a deadline; an expired wait discards only this
// selection, not the cart.
func (r *Router) onSelectItem(a *gateway.Action) error {
	buyerID, err := r.ownedTicket(a)
	if err != nil {
		return err
	}
	if _, ok := r.store.Item(a.Payload); !ok {
		return fmt.Errorf("%w: item %q not in catalog", shop.ErrNotFound, a.Payload)
	}
	r.setPending(&pendingInput{
		buyerID:  buyerID,
		chatID:   a.ChatID,
		kind:     pendingQuantity,
		item:     a.Payload,
		deadline: r.clock().Add(r.inputTimeout),
	})
	r.say(a.ChatID, fmt.Sprintf("How many %s would you like to buy? Reply with a number, or 'done' to skip.", a.Payload))
	return nil
}

func (r *Router) handlePendingReply(p *pendingInput, m *gateway.Message) {
	switch p.kind {
	case pendingQuantity:
		r.handleQuantityReply(p, m)
	case pendingReview:
		r.handleReviewReply(p, m)
	}
}

func (r *Router) handleQuantityReply(p *pendingInput, m *gateway.Message) {
	text := strings.TrimSpace(m.Text)
	if strings.EqualFold(text, "done") {
		r.clearPending(p.buyerID)
		r.promptNextStep(p.chatID)
		return
	}
	quantity, err := strconv.Atoi(text)
	if err != nil {
		r.say(p.chatID, "Invalid input. Please enter a number or type 'done' to finish.")
		return
	}
	if quantity <= 0 {
		r.say(p.chatID, "Quantity must be a positive number. Please try again.")
		return
	}
	if err := r.store.AddToCart(p.buyerID, p.item, quantity); err != nil {
		r.clearPending(p.buyerID)
		r.report(p.chatID, err)
		return
	}
	r.clearPending(p.buyerID)
	r.say(p.chatID, fmt.Sprintf("Added %d x %s to your cart.", quantity, p.item))
	r.promptNextStep(p.chatID)
}

// promptNextStep offers exactly three follow-ups after a cart change.
func (r *Router) promptNextStep(chatID int64) {
	r.render(gateway.Render{
		ChatID: chatID,
		Text:   "Would you like to add more items to your cart or remove items?",
		Choices: []gateway.Choice{
			{Label: "Add More", Kind: gateway.ActionAddMore},
			{Label: "Done", Kind: gateway.ActionFinishCart},
			{Label: "Remove Items", Kind: gateway.ActionRemoveMenu},
		},
	})
}

func (r *Router) onAddMore(a *gateway.Action) error {
	if _, err := r.ownedTicket(a); err != nil {
		return err
	}
	r.promptItemSelection(a.ChatID)
	return nil
}

func (r *Router) onRemoveMenu(a *gateway.Action) error {
	buyerID, err := r.ownedTicket(a)
	if err != nil {
		return err
	}
	cart := r.store.Cart(buyerID)
	if len(cart) == 0 {
		r.say(a.ChatID, "Your cart is empty.")
		return nil
	}
	names := make([]string, 0, len(cart))
	for name := range cart {
		names = append(names, name)
	}
	sort.Strings(names)
	choices := make([]gateway.Choice, 0, len(names))
	for _, name := range names {
		choices = append(choices, gateway.Choice{
			Label:   name,
			Kind:    gateway.ActionRemoveItem,
			Payload: name,
		})
	}
	r.render(gateway.Render{
		ChatID:  a.ChatID,
		Text:    "Select an item to remove from your cart:",
		Choices: choices,
	})
	return nil
}

func (r *Router) onRemoveItem(a *gateway.Action) error {
	buyerID, err := r.ownedTicket(a)
	if err != nil {
		return err
	}
	if err := r.store.RemoveFromCart(buyerID, a.Payload); err != nil {
		return err
	}
	r.say(a.ChatID, fmt.Sprintf("Removed %s from your cart.", a.Payload))
	r.promptNextStep(a.ChatID)
	return nil
}

// onFinishCart shows the cart summary and the payment-method choices.
func (r *Router) onFinishCart(a *gateway.Action) error {
	buyerID, err := r.ownedTicket(a)
	if err != nil {
		return err
	}
	cart := r.store.Cart(buyerID)
	if len(cart) == 0 {
		r.say(a.ChatID, "Your cart is empty.")
		return nil
	}
	choices := make([]gateway.Choice, 0, len(models.Methods()))
	for _, m := range models.Methods() {
		choices = append(choices, gateway.Choice{
			Label:   string(m),
			Kind:    gateway.ActionChooseMethod,
			Payload: string(m),
		})
	}
	r.render(gateway.Render{
		ChatID:   a.ChatID,
		Text:     r.cartSummary(buyerID, "Here are the items in your cart:") + "\n\nChoose your payment method:",
		Choices:  choices,
		ImageURL: r.currentReviewImage(),
	})
	return nil
}

func (r *Router) cartSummary(buyerID int64, header string) string {
	cart := r.store.Cart(buyerID)
	names := make([]string, 0, len(cart))
	for name := range cart {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(header)
	for _, name := range names {
		if it, ok := r.store.Item(name); ok {
			fmt.Fprintf(&b, "\n%s x%d — $%.2f", name, cart[name], it.Price*float64(cart[name]))
		}
	}
	fmt.Fprintf(&b, "\nTotal: $%.2f", r.store.CartTotal(buyerID))
	return b.String()
}

// onChooseMethod finalizes the cart and replies with the instructions
// for the chosen payment method.
func (r *Router) onChooseMethod(a *gateway.Action) error {
	buyerID, err := r.ownedTicket(a)
	if err != nil {
		return err
	}
	method := models.PaymentMethod(a.Payload)
	if err := r.machine.ChoosePayment(a.ActorID, buyerID, method); err != nil {
		return err
	}
	r.render(gateway.Render{
		ChatID:   a.ChatID,
		Text:     r.payments.instructions(method),
		ImageURL: r.currentReviewImage(),
		Choices: []gateway.Choice{
			{Label: "Mark as Paid", Kind: gateway.ActionMarkPaid},
			{Label: "Cancel", Kind: gateway.ActionCancel},
		},
	})
	return nil
}

// onMarkPaid posts the public paid notice with a Deal Completed button
// addressed to admins.
func (r *Router) onMarkPaid(a *gateway.Action) error {
	buyerID, err := r.ownedTicket(a)
	if err != nil {
		return err
	}
	if err := r.machine.MarkPaid(a.ActorID, buyerID); err != nil {
		return err
	}
	tx := r.store.Transaction(buyerID)
	summary := r.cartSummary(buyerID, fmt.Sprintf("%s has marked their payment as paid.", a.ActorName))
	summary += fmt.Sprintf("\nPayment Method: %s", tx.Method)
	r.render(gateway.Render{
		ChatID:   a.ChatID,
		Text:     summary + "\n\nWaiting for an admin to complete the deal.",
		ImageURL: r.currentReviewImage(),
		Choices: []gateway.Choice{
			{Label: "Deal Completed", Kind: gateway.ActionCompleteDeal, Payload: strconv.FormatInt(buyerID, 10)},
		},
	})
	return nil
}

// onCompleteDeal is the admin confirmation. The buyer ID rides in the
// button payload because an admin presses it inside the buyer's ticket.
func (r *Router) onCompleteDeal(a *gateway.Action) error {
	buyerID, err := strconv.ParseInt(a.Payload, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed deal reference", shop.ErrValidation)
	}
	if err := r.machine.CompleteDeal(a.ActorID, buyerID); err != nil {
		return err
	}
	r.render(gateway.Render{
		ChatID:   a.ChatID,
		Text:     "Deal completed. Please leave a review!",
		ImageURL: r.currentReviewImage(),
		Choices: []gateway.Choice{
			{Label: "Leave a Review", Kind: gateway.ActionLeaveReview},
		},
	})
	return nil
}

// onLeaveReview starts review entry for the ticket owner.
func (r *Router) onLeaveReview(a *gateway.Action) error {
	buyerID, err := r.ownedTicket(a)
	if err != nil {
		return err
	}
	tx := r.store.Transaction(buyerID)
	if tx == nil || tx.State != models.StateCompleted {
		return fmt.Errorf("%w: there is no completed deal to review", shop.ErrInvalidState)
	}
	r.setPending(&pendingInput{
		buyerID: buyerID,
		chatID:  a.ChatID,
		kind:    pendingReview,
	})
	r.say(a.ChatID, "Reply with your star rating (1-5) followed by your review. Example: 5 Great service!")
	return nil
}

func (r *Router) handleReviewReply(p *pendingInput, m *gateway.Message) {
	ratingText, reviewText, _ := strings.Cut(strings.TrimSpace(m.Text), " ")
	rating, err := strconv.Atoi(ratingText)
	if err != nil {
		r.say(p.chatID, "Invalid star rating. Please enter a number between 1 and 5.")
		return
	}
	review, err := r.machine.SubmitReview(m.ActorID, p.buyerID, rating, strings.TrimSpace(reviewText))
	if err != nil {
		if errors.Is(err, shop.ErrValidation) {
			r.say(p.chatID, "Please enter a star rating between 1 and 5.")
			return
		}
		r.clearPending(p.buyerID)
		r.report(p.chatID, err)
		return
	}
	r.clearPending(p.buyerID)
	r.publishReview(m.ActorName, review)
	r.say(p.chatID, "Thank you for your review!")
}

func (r *Router) publishReview(buyerName string, review *shop.Review) {
	if r.reviewsChatID == 0 {
		r.logger.Printf("no reviews chat configured, dropping review from %d", review.BuyerID)
		return
	}
	names := make([]string, 0, len(review.Cart))
	for name := range review.Cart {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	fmt.Fprintf(&b, "New review from %s\n", buyerName)
	if review.Text != "" {
		fmt.Fprintf(&b, "%s\n", review.Text)
	}
	b.WriteString("\nItems Purchased:")
	for _, name := range names {
		fmt.Fprintf(&b, "\n%s x%d", name, review.Cart[name])
	}
	fmt.Fprintf(&b, "\nTotal Price: $%.2f", review.Total)
	fmt.Fprintf(&b, "\nPayment Method: %s", review.Method)
	fmt.Fprintf(&b, "\nStar Rating: %s", strings.Repeat("⭐", review.Rating))
	r.render(gateway.Render{
		ChatID:   r.reviewsChatID,
		Text:     b.String(),
		ImageURL: r.currentReviewImage(),
	})
}

// onCancel tears the transaction down (when one is live) and closes
// the ticket. Reviewed sessions are already cleared, so only the
// ticket remains to close.
func (r *Router) onCancel(a *gateway.Action) error {
	t := r.store.Ticket(a.ChatID)
	if t == nil || !t.Open {
		return fmt.Errorf("%w: this can only be used in a ticket channel", shop.ErrNotFound)
	}
	if r.store.Transaction(t.BuyerID) != nil {
		if err := r.machine.Cancel(a.ActorID, t.BuyerID); err != nil {
			return err
		}
	}
	r.clearPending(t.BuyerID)
	return r.tickets.Close(a.ChatID, a.ActorID)
}

func (r *Router) currentReviewImage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reviewImage
}

// capitalizeReason turns a wrapped error into a sentence-looking user
// message.
func capitalizeReason(err error) string {
	msg := err.Error()
	runes := []rune(msg)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes) + "."
}
