package models

// CatalogItem represents a purchasable product
type CatalogItem struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// Cart maps item name to quantity for one buyer session
type Cart map[string]int

// PaymentMethod is one of the accepted payment options
type PaymentMethod string

const (
	MethodBTC     PaymentMethod = "BTC"
	MethodETH     PaymentMethod = "ETH"
	MethodLTC     PaymentMethod = "LTC"
	MethodPayPal  PaymentMethod = "PayPal"
	MethodCashApp PaymentMethod = "CashApp"
	MethodRobux   PaymentMethod = "Robux"
	MethodOther   PaymentMethod = "Others"
)

// Methods lists the accepted payment methods in display order.
func Methods() []PaymentMethod {
	return []PaymentMethod{
		MethodBTC, MethodETH, MethodLTC,
		MethodPayPal, MethodCashApp, MethodRobux, MethodOther,
	}
}

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	for _, v := range Methods() {
		if m == v {
			return true
		}
	}
	return false
}

// TxState is the transaction state of one buyer session
type TxState string

const (
	StateOpen            TxState = "open"
	StateAwaitingPayment TxState = "awaiting_payment"
	StatePaid            TxState = "paid"
	StateCompleted       TxState = "completed"
	StateReviewed        TxState = "reviewed"
	StateCancelled       TxState = "cancelled"
)

// TransactionRecord tracks payment progress for one buyer session
type TransactionRecord struct {
	BuyerID   int64         `json:"buyer_id"`
	Method    PaymentMethod `json:"payment_method,omitempty"`
	Paid      bool          `json:"paid"`
	Completed bool          `json:"completed"`
	State     TxState       `json:"state"`
}

// Ticket is an isolated purchase channel owned by one buyer
type Ticket struct {
	BuyerID int64 `json:"buyer_id"`
	ChatID  int64 `json:"chat_id"`
	Open    bool  `json:"open"`
}

// ReviewStats are the durable per-buyer counters
type ReviewStats struct {
	DealsCompleted int     `json:"deals_completed"`
	TotalSpent     float64 `json:"total_spent"`
}
