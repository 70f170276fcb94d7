package gateway

import (
	"fmt"
	"log"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram backs the gateway with the Bot API. A ticket channel maps
// to the buyer's private chat with the bot (private chat IDs equal the
// user ID); Grant mirrors ticket traffic to the granted user's chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	logger *log.Logger

	mu      sync.Mutex
	mirrors map[int64][]int64 // ticket chat -> extra recipients
}

func NewTelegram(logger *log.Logger, token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	logger.Printf("Bot authorized as %s", bot.Self.UserName)
	return &Telegram{bot: bot, logger: logger, mirrors: make(map[int64][]int64)}, nil
}

// Updates returns the long-poll update channel consumed by the single
// event-loop worker.
func (t *Telegram) Updates(timeout int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	return t.bot.GetUpdatesChan(u)
}

// Stop shuts the long poll down.
func (t *Telegram) Stop() {
	t.bot.StopReceivingUpdates()
}

func (t *Telegram) OpenChannel(buyerID int64, buyerName string) (int64, error) {
	// Nothing to allocate: the buyer's private chat is the channel.
	// Confirm it is reachable so a buyer who never talked to the bot
	// gets a clean error instead of silent message loss.
	msg := tgbotapi.NewMessage(buyerID, fmt.Sprintf("Hi %s, this chat is now your purchase ticket.", buyerName))
	if _, err := t.bot.Send(msg); err != nil {
		return 0, fmt.Errorf("open ticket chat for %d: %w", buyerID, err)
	}
	return buyerID, nil
}

func (t *Telegram) CloseChannel(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "This ticket is now closed.")
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("close ticket chat %d: %w", chatID, err)
	}
	t.mu.Lock()
	delete(t.mirrors, chatID)
	t.mu.Unlock()
	return nil
}

func (t *Telegram) Grant(chatID, userID int64) error {
	msg := tgbotapi.NewMessage(userID, "You have been added to a purchase ticket. Updates will be forwarded here.")
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("grant ticket %d to %d: %w", chatID, userID, err)
	}
	t.mu.Lock()
	t.mirrors[chatID] = append(t.mirrors[chatID], userID)
	t.mu.Unlock()
	return nil
}

func (t *Telegram) Send(r Render) error {
	if err := t.sendTo(r.ChatID, r); err != nil {
		return err
	}
	t.mu.Lock()
	mirrors := append([]int64(nil), t.mirrors[r.ChatID]...)
	t.mu.Unlock()
	for _, id := range mirrors {
		if err := t.sendTo(id, r); err != nil {
			t.logger.Printf("mirror to %d failed: %v", id, err)
		}
	}
	return nil
}

func (t *Telegram) sendTo(chatID int64, r Render) error {
	var markup *tgbotapi.InlineKeyboardMarkup
	if len(r.Choices) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(r.Choices))
		for _, c := range r.Choices {
			data := string(c.Kind)
			if c.Payload != "" {
				data += ":" + c.Payload
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(c.Label, data),
			))
		}
		m := tgbotapi.NewInlineKeyboardMarkup(rows...)
		markup = &m
	}

	if r.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(r.ImageURL))
		photo.Caption = r.Text
		if markup != nil {
			photo.ReplyMarkup = markup
		}
		if _, err := t.bot.Send(photo); err != nil {
			// Bad or dead image URLs should not eat the prompt.
			t.logger.Printf("photo send to %d failed, falling back to text: %v", chatID, err)
		} else {
			return nil
		}
	}

	msg := tgbotapi.NewMessage(chatID, r.Text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

// Ack answers a callback query so the client stops its spinner.
func (t *Telegram) Ack(callbackID string) {
	if _, err := t.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		t.logger.Printf("callback ack failed: %v", err)
	}
}

// DecodeUpdate translates a Telegram update into the core's event
// model. Exactly one of the returns is non-nil; both nil for updates
// the core does not care about.
func DecodeUpdate(u tgbotapi.Update) (*Action, *Message) {
	if cb := u.CallbackQuery; cb != nil && cb.Message != nil {
		kind, payload, _ := strings.Cut(cb.Data, ":")
		return &Action{
			ActorID:   cb.From.ID,
			ActorName: displayName(cb.From),
			ChatID:    cb.Message.Chat.ID,
			Kind:      ActionKind(kind),
			Payload:   payload,
		}, nil
	}
	if m := u.Message; m != nil && m.From != nil {
		return nil, &Message{
			ActorID:   m.From.ID,
			ActorName: displayName(m.From),
			ChatID:    m.Chat.ID,
			Text:      m.Text,
		}
	}
	return nil, nil
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
