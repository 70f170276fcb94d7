package bot

import (
	"fmt"
	"strconv"
	"strings"

	"storebot-tg-app/internal/gateway"
	"storebot-tg-app/internal/shop"
)

const storefrontText = "Storefront\n\n" +
	"Welcome! This bot walks you through your purchase:\n" +
	"- Instant delivery once payment is confirmed\n" +
	"- A private ticket channel for every order\n" +
	"- Crypto, PayPal, CashApp, Robux and more accepted\n\n" +
	"Press Purchase to open your ticket."

// handleCommand parses a prefix command. Unknown or unprefixed text in
// a non-ticket chat is ignored, matching how a shared storefront chat
// behaves.
func (r *Router) handleCommand(m *gateway.Message) {
	r.mu.Lock()
	prefix := r.prefix
	r.mu.Unlock()

	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, prefix) {
		return
	}
	command, args, _ := strings.Cut(strings.TrimPrefix(text, prefix), " ")
	args = strings.TrimSpace(args)

	var err error
	switch strings.ToLower(command) {
	case "help":
		r.cmdHelp(m)
	case "setup":
		err = r.cmdSetup(m)
	case "announce":
		err = r.cmdAnnounce(m, args)
	case "additem":
		err = r.cmdAddItem(m, args)
	case "removeitem":
		err = r.cmdRemoveItem(m, args)
	case "setreviewimage":
		err = r.cmdSetReviewImage(m, args)
	case "closeall":
		err = r.cmdCloseAll(m)
	case "grant":
		err = r.cmdGrant(m, args)
	case "close":
		err = r.tickets.Close(m.ChatID, m.ActorID)
	case "setprefix":
		err = r.cmdSetPrefix(m, args)
	default:
		r.say(m.ChatID, fmt.Sprintf("Unknown command. Use %shelp for a list of commands.", prefix))
	}
	if err != nil {
		r.report(m.ChatID, err)
	}
}

func (r *Router) requireAdmin(actorID int64) error {
	if !r.machine.IsAdmin(actorID) {
		return fmt.Errorf("%w: this command is admin only", shop.ErrUnauthorized)
	}
	return nil
}

func (r *Router) cmdHelp(m *gateway.Message) {
	r.mu.Lock()
	prefix := r.prefix
	r.mu.Unlock()

	var b strings.Builder
	b.WriteString("Available Commands\n\n")
	fmt.Fprintf(&b, "%shelp — show this message\n", prefix)
	fmt.Fprintf(&b, "%sclose — close your current ticket\n", prefix)
	if r.machine.IsAdmin(m.ActorID) {
		b.WriteString("\nAdmin Commands\n")
		fmt.Fprintf(&b, "%ssetup — post the storefront prompt here\n", prefix)
		fmt.Fprintf(&b, "%sannounce <title> | <text> — post an announcement\n", prefix)
		fmt.Fprintf(&b, "%sadditem <name> | <price> | <description> — add a catalog item\n", prefix)
		fmt.Fprintf(&b, "%sremoveitem <name> — remove a catalog item\n", prefix)
		fmt.Fprintf(&b, "%ssetreviewimage <url> — set the review illustration\n", prefix)
		fmt.Fprintf(&b, "%scloseall — close every open ticket\n", prefix)
		fmt.Fprintf(&b, "%sgrant <user id> — add a user to this ticket\n", prefix)
		fmt.Fprintf(&b, "%ssetprefix <prefix> — change the command prefix\n", prefix)
	}
	r.say(m.ChatID, b.String())
}

// cmdSetup posts the storefront prompt with the Purchase button into
// the current chat.
func (r *Router) cmdSetup(m *gateway.Message) error {
	if err := r.requireAdmin(m.ActorID); err != nil {
		return err
	}
	r.render(gateway.Render{
		ChatID:   m.ChatID,
		Text:     storefrontText,
		ImageURL: r.currentReviewImage(),
		Choices: []gateway.Choice{
			{Label: "Purchase", Kind: gateway.ActionPurchase},
		},
	})
	return nil
}

func (r *Router) cmdAnnounce(m *gateway.Message, args string) error {
	if err := r.requireAdmin(m.ActorID); err != nil {
		return err
	}
	title, body, found := strings.Cut(args, "|")
	if !found || strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: usage: announce <title> | <text>", shop.ErrValidation)
	}
	r.render(gateway.Render{
		ChatID:   m.ChatID,
		Text:     strings.TrimSpace(title) + "\n\n" + strings.TrimSpace(body),
		ImageURL: r.currentReviewImage(),
	})
	return nil
}

func (r *Router) cmdAddItem(m *gateway.Message, args string) error {
	if err := r.requireAdmin(m.ActorID); err != nil {
		return err
	}
	parts := strings.SplitN(args, "|", 3)
	if len(parts) < 2 {
		return fmt.Errorf("%w: usage: additem <name> | <price> | <description>", shop.ErrValidation)
	}
	name := strings.TrimSpace(parts[0])
	price, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return fmt.Errorf("%w: price must be a number", shop.ErrValidation)
	}
	description := ""
	if len(parts) == 3 {
		description = strings.TrimSpace(parts[2])
	}
	if err := r.store.AddItem(name, price, description); err != nil {
		return err
	}
	r.say(m.ChatID, fmt.Sprintf("Added %s to the catalog.", name))
	return nil
}

func (r *Router) cmdRemoveItem(m *gateway.Message, args string) error {
	if err := r.requireAdmin(m.ActorID); err != nil {
		return err
	}
	name := strings.TrimSpace(args)
	if name == "" {
		return fmt.Errorf("%w: usage: removeitem <name>", shop.ErrValidation)
	}
	if err := r.store.RemoveItem(name); err != nil {
		return err
	}
	r.say(m.ChatID, fmt.Sprintf("Removed %s from the catalog.", name))
	return nil
}

func (r *Router) cmdSetReviewImage(m *gateway.Message, args string) error {
	if err := r.requireAdmin(m.ActorID); err != nil {
		return err
	}
	url := strings.TrimSpace(args)
	if url == "" {
		return fmt.Errorf("%w: usage: setreviewimage <url>", shop.ErrValidation)
	}
	r.mu.Lock()
	r.reviewImage = url
	r.mu.Unlock()
	r.say(m.ChatID, "Review illustration updated.")
	return nil
}

func (r *Router) cmdCloseAll(m *gateway.Message) error {
	closed, err := r.tickets.CloseAll(m.ActorID)
	if err != nil {
		return err
	}
	r.say(m.ChatID, fmt.Sprintf("Closed %d tickets.", closed))
	return nil
}

func (r *Router) cmdGrant(m *gateway.Message, args string) error {
	targetID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: usage: grant <user id>", shop.ErrValidation)
	}
	if err := r.tickets.Grant(m.ChatID, m.ActorID, targetID); err != nil {
		return err
	}
	r.say(m.ChatID, fmt.Sprintf("Added user %d to this ticket.", targetID))
	return nil
}

// cmdSetPrefix changes the command prefix in memory; it does not
// survive a restart.
func (r *Router) cmdSetPrefix(m *gateway.Message, args string) error {
	if err := r.requireAdmin(m.ActorID); err != nil {
		return err
	}
	p := strings.TrimSpace(args)
	if p == "" {
		return fmt.Errorf("%w: usage: setprefix <prefix>", shop.ErrValidation)
	}
	r.mu.Lock()
	r.prefix = p
	r.mu.Unlock()
	r.say(m.ChatID, fmt.Sprintf("Command prefix changed to %s", p))
	return nil
}
