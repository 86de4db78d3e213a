package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rsjoberg/firefly-receipts/internal/ledger"
)

// parsePage parses a model reply into a transaction group for one page.
// Invalid JSON is a ParseError; a missing transactions field is an empty
// list. Parsed transactions are sanitized: amounts and dates re-normalized,
// zero-amount lines dropped, undetermined currency filled from the defaults.
func parsePage(text string, d Defaults) (*ledger.TransactionGroup, error) {
	text = stripFences(text)

	var group ledger.TransactionGroup
	if err := json.Unmarshal([]byte(text), &group); err != nil {
		return nil, &ParseError{Err: err}
	}

	sanitized := make([]ledger.Transaction, 0, len(group.Transactions))
	for _, tx := range group.Transactions {
		tx.Amount = NormalizeAmount(tx.Amount)
		tx.Date = NormalizeDate(tx.Date)
		if isZeroAmount(tx.Amount) {
			continue
		}
		if tx.Type == "" {
			tx.Type = "withdrawal"
		}
		if tx.CurrencyCode == "" {
			tx.CurrencyCode = d.CurrencyCode
			tx.CurrencyID = d.CurrencyID
		}
		if tx.CurrencyID == "" && tx.CurrencyCode == d.CurrencyCode {
			tx.CurrencyID = d.CurrencyID
		}
		if tx.SourceName == "" {
			tx.SourceName = d.SourceName
		}
		if tx.Tags == "" {
			tx.Tags = "Firefly Assistant"
		}
		sanitized = append(sanitized, tx)
	}

	group.Transactions = sanitized
	group.FireWebhooks = true
	return &group, nil
}

// stripFences removes markdown code fences some models wrap JSON in, then
// slices down to the outermost object.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		text = text[start : end+1]
	}
	return text
}

// NormalizeAmount converts an amount string to Firefly's format: decimal
// dot, exactly two fraction digits, no currency symbols or thousands
// separators. "543,20" becomes "543.20", "1 234,5 kr" becomes "1234.50".
func NormalizeAmount(raw string) string {
	var kept strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			kept.WriteRune(r)
		}
	}
	s := kept.String()
	if s == "" || s == "-" {
		return raw
	}

	// The last separator with one or two trailing digits is the decimal
	// point; every other separator is grouping.
	intPart, fracPart := s, ""
	if i := strings.LastIndexAny(s, ".,"); i != -1 {
		frac := s[i+1:]
		if len(frac) >= 1 && len(frac) <= 2 && isDigits(frac) {
			intPart, fracPart = s[:i], frac
		}
	}
	intPart = strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, intPart)

	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimLeft(intPart, "-")
	if intPart == "" {
		intPart = "0"
	}
	switch len(fracPart) {
	case 0:
		fracPart = "00"
	case 1:
		fracPart += "0"
	}
	if neg {
		intPart = "-" + intPart
	}
	return intPart + "." + fracPart
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isZeroAmount(s string) bool {
	return strings.Trim(s, "-0.") == ""
}

var dateLayouts = []struct {
	layout    string
	shortYear bool
}{
	{"2006-01-02", false},
	{"2006/01/02", false},
	{"2006.01.02", false},
	{"02.01.2006", false},
	{"02/01/2006", false},
	{"02-01-2006", false},
	{"06 01 02", true},
	{"02.01.06", true},
	{"02/01/06", true},
}

// NormalizeDate re-formats a recognized date fragment as ISO YYYY-MM-DD.
// Two-digit years always land in 2000-2099. Unrecognized input passes
// through untouched; the model's output is trusted beyond structural fixes.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	for _, l := range dateLayouts {
		d, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if l.shortYear && d.Year() < 2000 {
			d = d.AddDate(100, 0, 0)
		}
		return d.Format("2006-01-02")
	}
	return raw
}
