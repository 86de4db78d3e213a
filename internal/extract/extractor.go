package extract

import (
	"context"
	"fmt"

	"github.com/rsjoberg/firefly-receipts/internal/ledger"
)

// Hints carries the ledger context appended to the instruction prompt so the
// model prefers exact matches over freeform text.
type Hints struct {
	Categories []string
	Merchants  []string
}

// Defaults fill transaction fields the model left undetermined.
type Defaults struct {
	CurrencyCode string
	CurrencyID   string
	SourceName   string
}

// Extractor turns one receipt page image into a transaction group. The
// extraction logic itself lives in an external vision-language model; an
// implementation is only responsible for request construction and response
// validation.
type Extractor interface {
	ExtractPage(ctx context.Context, imagePath string, hints Hints) (*ledger.TransactionGroup, error)
	// Close releases client resources.
	Close() error
}

// ServiceError indicates a transport, auth, or service failure when calling
// the extraction service. Never retried.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("extraction service: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ParseError indicates the model's response was not structurally valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing extraction response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
