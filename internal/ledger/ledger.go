package ledger

import "context"

// TransactionGroup is the unit submitted to Firefly III and reported back to
// the user: all line items extracted from one receipt plus a shared title.
type TransactionGroup struct {
	FireWebhooks bool          `json:"fire_webhooks"`
	GroupTitle   string        `json:"group_title"`
	Transactions []Transaction `json:"transactions"`
}

// Transaction is one purchasable line item from a receipt. Field names match
// the Firefly III v1 transaction store payload exactly.
type Transaction struct {
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	Date            string `json:"date"`
	Description     string `json:"description"`
	CurrencyID      string `json:"currency_id"`
	CategoryName    string `json:"category_name"`
	CurrencyCode    string `json:"currency_code"`
	SourceName      string `json:"source_name"`
	DestinationName string `json:"destination_name"`
	Tags            string `json:"tags"`
	Notes           string `json:"notes"`
}

// SubmitResponse is the relevant slice of Firefly's transaction store
// response: one data element per created group, each listing the journal
// entries created for its splits.
type SubmitResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Transactions []struct {
				TransactionJournalID string `json:"transaction_journal_id"`
			} `json:"transactions"`
		} `json:"attributes"`
	} `json:"data"`
}

// JournalIDs returns every created journal entry id, in response order.
func (r *SubmitResponse) JournalIDs() []string {
	var ids []string
	for _, d := range r.Data {
		for _, tx := range d.Attributes.Transactions {
			if tx.TransactionJournalID != "" {
				ids = append(ids, tx.TransactionJournalID)
			}
		}
	}
	return ids
}

// Ledger defines the ledger operations the pipeline depends on, so tests can
// substitute a deterministic fake without network access.
type Ledger interface {
	// SubmitTransactions posts a transaction group to the ledger.
	SubmitTransactions(ctx context.Context, group *TransactionGroup) (*SubmitResponse, error)
	// ExpenseAccounts returns the names of all expense-type accounts.
	ExpenseAccounts(ctx context.Context) ([]string, error)
	// Categories returns the names of all known categories.
	Categories(ctx context.Context) ([]string, error)
	// CreateAndAttach submits a group and attaches the original receipt file
	// to every journal entry the ledger created for it.
	CreateAndAttach(ctx context.Context, group *TransactionGroup, receiptPath, notes string) (*SubmitResponse, error)
}
