package bot

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storebot-tg-app/internal/config"
	"storebot-tg-app/internal/gateway"
	"storebot-tg-app/internal/ledger"
	"storebot-tg-app/internal/models"
	"storebot-tg-app/internal/shop"
	"storebot-tg-app/internal/store"
	"storebot-tg-app/internal/ticket"
)

type fakeGateway struct {
	nextChatID int64
	sends      []gateway.Render
	grants     map[int64][]int64
}

func (f *fakeGateway) OpenChannel(buyerID int64, buyerName string) (int64, error) {
	f.nextChatID++
	return f.nextChatID, nil
}

func (f *fakeGateway) CloseChannel(chatID int64) error { return nil }

func (f *fakeGateway) Grant(chatID, userID int64) error {
	if f.grants == nil {
		f.grants = make(map[int64][]int64)
	}
	f.grants[chatID] = append(f.grants[chatID], userID)
	return nil
}

func (f *fakeGateway) Send(r gateway.Render) error {
	f.sends = append(f.sends, r)
	return nil
}

// lastText returns the most recent render text, "" when nothing was sent.
func (f *fakeGateway) lastText() string {
	if len(f.sends) == 0 {
		return ""
	}
	return f.sends[len(f.sends)-1].Text
}

func (f *fakeGateway) sentTo(chatID int64) []gateway.Render {
	var out []gateway.Render
	for _, r := range f.sends {
		if r.ChatID == chatID {
			out = append(out, r)
		}
	}
	return out
}

const (
	buyerID   int64 = 10
	adminID   int64 = 99
	reviewsID int64 = 777
)

type fixture struct {
	gw     *fakeGateway
	store  *store.Store
	ledger *ledger.Ledger
	router *Router
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	gw := &fakeGateway{nextChatID: 100}
	st := store.New()
	led := ledger.New(logger, filepath.Join(t.TempDir(), "deal_data.json"))
	if err := led.Load(); err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	machine := shop.NewMachine(logger, st, led, []int64{adminID})
	tickets := ticket.NewManager(logger, st, gw, machine.IsAdmin)
	cfg := &config.Config{
		CommandPrefix: "!",
		InputTimeout:  60 * time.Second,
		ReviewsChatID: reviewsID,
	}
	r := NewRouter(logger, cfg, st, machine, tickets, gw)
	f := &fixture{gw: gw, store: st, ledger: led, router: r, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r.clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) action(actorID, chatID int64, kind gateway.ActionKind, payload string) {
	f.router.HandleAction(&gateway.Action{
		ActorID: actorID, ActorName: fmt.Sprintf("user%d", actorID),
		ChatID: chatID, Kind: kind, Payload: payload,
	})
}

func (f *fixture) message(actorID, chatID int64, text string) {
	f.router.HandleMessage(&gateway.Message{
		ActorID: actorID, ActorName: fmt.Sprintf("user%d", actorID),
		ChatID: chatID, Text: text,
	})
}

// openTicket runs the purchase action and returns the ticket chat ID.
func (f *fixture) openTicket(t *testing.T) int64 {
	t.Helper()
	f.action(buyerID, 1, gateway.ActionPurchase, "")
	ticket := f.store.TicketByBuyer(buyerID)
	if ticket == nil {
		t.Fatalf("ticket not opened; last message: %q", f.gw.lastText())
	}
	return ticket.ChatID
}

func (f *fixture) stockWidget(t *testing.T) {
	t.Helper()
	if err := f.store.AddItem("Widget", 10.0, "a widget"); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
}

func TestPurchaseOpensTicketAndPromptsSelection(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	chatID := f.openTicket(t)

	renders := f.gw.sentTo(chatID)
	if len(renders) < 2 {
		t.Fatalf("expected welcome and selection prompts, got %d renders", len(renders))
	}
	last := renders[len(renders)-1]
	if !strings.Contains(last.Text, "select an item") {
		t.Fatalf("expected selection prompt, got %q", last.Text)
	}
	if len(last.Choices) != 1 || last.Choices[0].Kind != gateway.ActionSelectItem {
		t.Fatalf("expected one select choice, got %+v", last.Choices)
	}
}

func TestQuantityEntryAddsLineAndOffersThreeChoices(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	chatID := f.openTicket(t)

	f.action(buyerID, chatID, gateway.ActionSelectItem, "Widget")
	f.message(buyerID, chatID, "3")

	if got := f.store.Cart(buyerID)["Widget"]; got != 3 {
		t.Fatalf("expected quantity 3 in cart, got %d", got)
	}
	last := f.gw.sends[len(f.gw.sends)-1]
	if len(last.Choices) != 3 {
		t.Fatalf("expected exactly three follow-up choices, got %+v", last.Choices)
	}
}

func TestQuantityEntryRepromptsOnBadInput(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	chatID := f.openTicket(t)
	f.action(buyerID, chatID, gateway.ActionSelectItem, "Widget")

	f.message(buyerID, chatID, "many")
	if !strings.Contains(f.gw.lastText(), "Invalid input") {
		t.Fatalf("expected reprompt, got %q", f.gw.lastText())
	}
	f.message(buyerID, chatID, "-2")
	if !strings.Contains(f.gw.lastText(), "positive number") {
		t.Fatalf("expected positive-number reprompt, got %q", f.gw.lastText())
	}
	// The prompt survives bad input; a good value still lands.
	f.message(buyerID, chatID, "4")
	if got := f.store.Cart(buyerID)["Widget"]; got != 4 {
		t.Fatalf("expected quantity 4, got %d", got)
	}
}

func TestQuantityEntryDoneSkipsWithoutLine(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	chatID := f.openTicket(t)
	f.action(buyerID, chatID, gateway.ActionSelectItem, "Widget")

	f.message(buyerID, chatID, "done")
	if len(f.store.Cart(buyerID)) != 0 {
		t.Fatalf("done must not add a line, cart: %v", f.store.Cart(buyerID))
	}
	last := f.gw.sends[len(f.gw.sends)-1]
	if len(last.Choices) != 3 {
		t.Fatalf("expected the three-way menu, got %+v", last.Choices)
	}
}

func TestQuantityEntryTimeoutDiscardsSelectionOnly(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	if err := f.store.AddItem("Gadget", 5.0, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	chatID := f.openTicket(t)

	// One line already in the cart before the doomed selection.
	f.action(buyerID, chatID, gateway.ActionSelectItem, "Widget")
	f.message(buyerID, chatID, "2")

	f.action(buyerID, chatID, gateway.ActionSelectItem, "Gadget")
	f.now = f.now.Add(61 * time.Second)
	f.router.SweepPending()

	if !strings.Contains(f.gw.lastText(), "took too long") {
		t.Fatalf("expected timeout notice, got %q", f.gw.lastText())
	}
	cart := f.store.Cart(buyerID)
	if len(cart) != 1 || cart["Widget"] != 2 {
		t.Fatalf("cart must be unchanged from before the selection, got %v", cart)
	}
	// The late reply no longer counts as quantity input.
	f.message(buyerID, chatID, "5")
	if _, ok := f.store.Cart(buyerID)["Gadget"]; ok {
		t.Fatal("late reply must not add the discarded selection")
	}
}

func TestFullFlowThroughReview(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	chatID := f.openTicket(t)

	f.action(buyerID, chatID, gateway.ActionSelectItem, "Widget")
	f.message(buyerID, chatID, "3")
	f.action(buyerID, chatID, gateway.ActionFinishCart, "")

	last := f.gw.sends[len(f.gw.sends)-1]
	if len(last.Choices) != len(models.Methods()) {
		t.Fatalf("expected a choice per payment method, got %d", len(last.Choices))
	}

	f.action(buyerID, chatID, gateway.ActionChooseMethod, "PayPal")
	if got := f.store.Transaction(buyerID).State; got != models.StateAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s", got)
	}

	f.action(buyerID, chatID, gateway.ActionMarkPaid, "")
	if got := f.store.Transaction(buyerID).State; got != models.StatePaid {
		t.Fatalf("expected paid, got %s", got)
	}

	// Non-admin cannot complete; state holds.
	f.action(buyerID, chatID, gateway.ActionCompleteDeal, "10")
	if got := f.store.Transaction(buyerID).State; got != models.StatePaid {
		t.Fatalf("state must remain paid after rejection, got %s", got)
	}

	f.action(adminID, chatID, gateway.ActionCompleteDeal, "10")
	if got := f.store.Transaction(buyerID).State; got != models.StateCompleted {
		t.Fatalf("expected completed, got %s", got)
	}

	f.action(buyerID, chatID, gateway.ActionLeaveReview, "")
	f.message(buyerID, chatID, "6 too generous")
	if !strings.Contains(f.gw.lastText(), "between 1 and 5") {
		t.Fatalf("expected rating rejection, got %q", f.gw.lastText())
	}

	f.message(buyerID, chatID, "5 great service")
	stats := f.ledger.Stats(buyerID)
	if stats.DealsCompleted != 1 || stats.TotalSpent != 30.0 {
		t.Fatalf("expected 1 deal / 30.0 spent, got %+v", stats)
	}
	if f.store.Transaction(buyerID) != nil {
		t.Fatal("session should be cleared after review")
	}

	published := f.gw.sentTo(reviewsID)
	if len(published) != 1 {
		t.Fatalf("expected one published review, got %d", len(published))
	}
	if !strings.Contains(published[0].Text, "Widget x3") || !strings.Contains(published[0].Text, "$30.00") {
		t.Fatalf("review missing purchase details: %q", published[0].Text)
	}
}

func TestCancelClosesTicketAndSession(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	chatID := f.openTicket(t)

	f.action(buyerID, chatID, gateway.ActionCancel, "")
	if f.store.Ticket(chatID) != nil {
		t.Fatal("ticket should be gone after cancel")
	}
	if f.store.Transaction(buyerID) != nil {
		t.Fatal("session should be cleared after cancel")
	}
	// The buyer can open a fresh ticket afterwards.
	if f.store.TicketByBuyer(buyerID) != nil {
		t.Fatal("no open ticket expected")
	}
	f.action(buyerID, 1, gateway.ActionPurchase, "")
	if f.store.TicketByBuyer(buyerID) == nil {
		t.Fatal("new ticket should open after cancel")
	}
}

func TestStrangerCannotDriveSomeoneElsesTicket(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	chatID := f.openTicket(t)

	f.action(55, chatID, gateway.ActionSelectItem, "Widget")
	if !strings.Contains(f.gw.lastText(), "permission") {
		t.Fatalf("expected permission message, got %q", f.gw.lastText())
	}
	f.message(55, chatID, "3")
	if len(f.store.Cart(buyerID)) != 0 {
		t.Fatal("stranger input must not reach the cart")
	}
}

func TestUnknownActionKind(t *testing.T) {
	f := newFixture(t)
	f.action(buyerID, 1, "frobnicate", "")
	if f.gw.lastText() != "Unknown action." {
		t.Fatalf("expected unknown-action notice, got %q", f.gw.lastText())
	}
}

func TestAdminCommands(t *testing.T) {
	f := newFixture(t)

	// Non-admin additem: rejected, catalog unchanged.
	f.message(buyerID, 1, "!additem Widget | 10 | a widget")
	if !strings.Contains(f.gw.lastText(), "permission") {
		t.Fatalf("expected rejection, got %q", f.gw.lastText())
	}
	if len(f.store.Items()) != 0 {
		t.Fatal("catalog must be unchanged after rejection")
	}

	f.message(adminID, 1, "!additem Widget | 10 | a widget")
	if len(f.store.Items()) != 1 {
		t.Fatalf("expected 1 item, got %d", len(f.store.Items()))
	}

	f.message(adminID, 1, "!additem Widget | ten | a widget")
	if !strings.Contains(f.gw.lastText(), "price must be a number") {
		t.Fatalf("expected price validation, got %q", f.gw.lastText())
	}

	f.message(adminID, 1, "!removeitem Widget")
	if len(f.store.Items()) != 0 {
		t.Fatal("expected empty catalog after removal")
	}
	f.message(adminID, 1, "!removeitem Widget")
	if !strings.Contains(f.gw.lastText(), "not in catalog") {
		t.Fatalf("expected not-found message, got %q", f.gw.lastText())
	}
}

func TestPrefixChangeTakesEffect(t *testing.T) {
	f := newFixture(t)
	f.message(adminID, 1, "!setprefix ?")
	f.message(adminID, 1, "?additem Widget | 10 | a widget")
	if len(f.store.Items()) != 1 {
		t.Fatal("new prefix should route commands")
	}
	// Old prefix is dead.
	f.message(adminID, 1, "!additem Gadget | 5 | a gadget")
	if len(f.store.Items()) != 1 {
		t.Fatal("old prefix must be ignored")
	}
}

func TestGrantCommand(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	chatID := f.openTicket(t)

	f.message(buyerID, chatID, "!grant 1234")
	if !strings.Contains(f.gw.lastText(), "permission") {
		t.Fatalf("expected rejection for non-admin, got %q", f.gw.lastText())
	}
	f.message(adminID, chatID, "!grant 1234")
	if got := f.gw.grants[chatID]; len(got) != 1 || got[0] != 1234 {
		t.Fatalf("expected grant to 1234, got %v", got)
	}
}

func TestCloseAllCommand(t *testing.T) {
	f := newFixture(t)
	f.stockWidget(t)
	f.openTicket(t)
	f.action(20, 1, gateway.ActionPurchase, "")
	if len(f.store.OpenTickets()) != 2 {
		t.Fatalf("expected 2 open tickets, got %d", len(f.store.OpenTickets()))
	}

	f.message(adminID, 1, "!closeall")
	if len(f.store.OpenTickets()) != 0 {
		t.Fatal("all tickets should be closed")
	}
	if !strings.Contains(f.gw.lastText(), "Closed 2 tickets") {
		t.Fatalf("expected count report, got %q", f.gw.lastText())
	}
}
