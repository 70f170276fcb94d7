package gateway

// The gateway is the boundary with the chat platform. The core never
// talks to the network or renders markup itself; it hands the gateway
// structured prompts and receives opaque action/message events back.

// ActionKind tags an inbound interactive action.
type ActionKind string

const (
	ActionPurchase     ActionKind = "purchase"
	ActionSelectItem   ActionKind = "select"
	ActionAddMore      ActionKind = "add_more"
	ActionFinishCart   ActionKind = "finish"
	ActionRemoveMenu   ActionKind = "remove_menu"
	ActionRemoveItem   ActionKind = "remove"
	ActionChooseMethod ActionKind = "method"
	ActionMarkPaid     ActionKind = "mark_paid"
	ActionCompleteDeal ActionKind = "complete"
	ActionLeaveReview  ActionKind = "review"
	ActionCancel       ActionKind = "cancel"
)

// Action is an inbound button press.
type Action struct {
	ActorID   int64
	ActorName string
	ChatID    int64
	Kind      ActionKind
	Payload   string
}

// Message is an inbound free-form text message.
type Message struct {
	ActorID   int64
	ActorName string
	ChatID    int64
	Text      string
}

// Choice is one interactive option attached to a prompt.
type Choice struct {
	Label   string
	Kind    ActionKind
	Payload string
}

// Render is an outbound prompt description.
type Render struct {
	ChatID    int64
	Text      string
	Choices   []Choice
	ImageURL  string
	Ephemeral bool // scope to the acting user where the platform allows it
}

// Gateway is the chat platform as the core sees it.
type Gateway interface {
	// OpenChannel allocates the isolated ticket channel for a buyer
	// and returns its chat ID.
	OpenChannel(buyerID int64, buyerName string) (int64, error)
	// CloseChannel tears the ticket channel down.
	CloseChannel(chatID int64) error
	// Grant extends channel visibility to an additional user.
	Grant(chatID, userID int64) error
	// Send renders a prompt into a channel.
	Send(r Render) error
}
