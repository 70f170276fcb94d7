package bot

import (
	"fmt"

	"storebot-tg-app/internal/models"
)

// paymentConfig holds the admin-configured receiving addresses.
type paymentConfig struct {
	BTCAddress string
	ETHAddress string
	LTCAddress string
}

// instructions renders the method-specific payment guidance shown
// right after the buyer picks a method.
func (p paymentConfig) instructions(method models.PaymentMethod) string {
	switch method {
	case models.MethodBTC:
		return cryptoInstructions("Bitcoin", p.BTCAddress)
	case models.MethodETH:
		return cryptoInstructions("Ethereum", p.ETHAddress)
	case models.MethodLTC:
		return cryptoInstructions("Litecoin", p.LTCAddress)
	case models.MethodPayPal:
		return "PayPal Payment\n\nPlease ping an admin for PayPal assistance."
	case models.MethodCashApp:
		return "CashApp Payment\n\n" +
			"1. Ask an admin for the CashApp tag.\n" +
			"2. Send the payment from your balance, not a card.\n" +
			"3. Do not include any notes with your payment.\n\n" +
			"Sending incorrectly may result in the loss of funds."
	case models.MethodRobux:
		return "Robux Payment\n\n" +
			"1. Ask an admin for the receiving account.\n" +
			"2. Include the transaction ID in the notes.\n" +
			"3. Make sure the amount matches your purchase."
	default:
		return "Other Payment Methods\n\nPlease wait for the seller or an admin to assist you."
	}
}

func cryptoInstructions(currency, address string) string {
	if address == "" {
		return fmt.Sprintf("%s Payment\n\nNo %s address is configured. Please wait for an admin to assist you.", currency, currency)
	}
	return fmt.Sprintf("%s Payment\n\nSend the required payment to the following address:\n%s\n\nCopy the address and complete your payment, then press Mark as Paid.", currency, address)
}
