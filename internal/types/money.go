// README: Money value object; budgets are whole rupees.
package types

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const CurrencyINR = "INR"

type Money struct {
	Amount   int64
	Currency string
}

func Rupees(amount int64) Money {
	return Money{Amount: amount, Currency: CurrencyINR}
}

var moneyPrinter = message.NewPrinter(language.English)

// String groups thousands, e.g. ₹40,000.
func (m Money) String() string {
	switch m.Currency {
	case "", CurrencyINR:
		return moneyPrinter.Sprintf("₹%d", m.Amount)
	default:
		return moneyPrinter.Sprintf("%d %s", m.Amount, m.Currency)
	}
}
