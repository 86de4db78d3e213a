package bot

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rsjoberg/firefly-receipts/internal/ledger"
)

// FormatSummary renders the HTML reply for a parsed receipt: title header,
// one line per transaction, a count, and a running total to two decimals.
func FormatSummary(group *ledger.TransactionGroup, defaultCurrency string) string {
	title := group.GroupTitle
	if title == "" {
		title = "Receipt"
	}

	lines := []string{fmt.Sprintf("🧾 <b>%s</b>", title)}
	total := decimal.Zero

	for _, tx := range group.Transactions {
		if amount, err := decimal.NewFromString(tx.Amount); err == nil {
			total = total.Add(amount)
		}
		lines = append(lines, fmt.Sprintf("• %s: <b>%s %s</b> on %s", tx.Description, tx.Amount, tx.CurrencyCode, tx.Date))
	}

	lines = append(lines, fmt.Sprintf("\n✅ Parsed <b>%d</b> transaction(s).", len(group.Transactions)))
	lines = append(lines, fmt.Sprintf("💰 Total: <b>%s %s</b>", total.StringFixed(2), defaultCurrency))

	return strings.Join(lines, "\n")
}
