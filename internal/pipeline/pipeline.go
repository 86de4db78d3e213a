package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rsjoberg/firefly-receipts/internal/document"
	"github.com/rsjoberg/firefly-receipts/internal/extract"
	"github.com/rsjoberg/firefly-receipts/internal/ledger"
)

// Config carries the rendering and normalization knobs.
type Config struct {
	// DPI for PDF page rasterization. Defaults to 300.
	DPI float64
	// MaxLongSide caps the normalized image's longer dimension. Defaults
	// to 1800.
	MaxLongSide int
	// Notes is attached to created ledger entries' receipt attachments.
	Notes string
}

type renderFunc func(path string, dpi float64) ([]string, error)
type normalizeFunc func(path string, maxLongSide int) (string, error)

// Pipeline orchestrates render -> normalize -> extract across the pages of
// one input document and merges the per-page results. It holds no state of
// its own; concurrent calls for different documents are safe.
type Pipeline struct {
	extractor extract.Extractor
	ledger    ledger.Ledger
	cfg       Config

	render    renderFunc
	normalize normalizeFunc
}

// New creates a Pipeline wired to the real renderer and normalizer.
func New(extractor extract.Extractor, lg ledger.Ledger, cfg Config) *Pipeline {
	return NewWithDeps(extractor, lg, cfg, document.RenderPages, document.Normalize)
}

// NewWithDeps creates a Pipeline with custom render/normalize functions for
// testing.
func NewWithDeps(extractor extract.Extractor, lg ledger.Ledger, cfg Config, render renderFunc, normalize normalizeFunc) *Pipeline {
	if cfg.DPI == 0 {
		cfg.DPI = 300
	}
	if cfg.MaxLongSide == 0 {
		cfg.MaxLongSide = 1800
	}
	return &Pipeline{
		extractor: extractor,
		ledger:    lg,
		cfg:       cfg,
		render:    render,
		normalize: normalize,
	}
}

// Process runs one input document through the whole pipeline and returns the
// merged transaction group. Pages are processed strictly in order; any page
// failing normalization or extraction aborts the whole document. When submit
// is set, the complete group and the original file are handed to the ledger
// before returning.
func (p *Pipeline) Process(ctx context.Context, path string, submit bool) (*ledger.TransactionGroup, error) {
	slog.Info("process_file_start", "path", path, "firefly", submit)

	pages, err := p.render(path, p.cfg.DPI)
	if err != nil {
		return nil, err
	}

	hints, err := p.hints(ctx)
	if err != nil {
		return nil, err
	}

	group := &ledger.TransactionGroup{
		FireWebhooks: true,
		Transactions: []ledger.Transaction{},
	}

	for _, page := range pages {
		prepped, err := p.normalize(page, p.cfg.MaxLongSide)
		if err != nil {
			return nil, err
		}

		pageGroup, err := p.extractor.ExtractPage(ctx, prepped, hints)
		if err != nil {
			return nil, err
		}

		group.Transactions = append(group.Transactions, pageGroup.Transactions...)
		if group.GroupTitle == "" {
			group.GroupTitle = pageGroup.GroupTitle
		}
		slog.Info("page_processed", "image", page, "transactions", len(pageGroup.Transactions))
	}

	if submit {
		if p.ledger == nil {
			return nil, errors.New("ledger submission requested but no ledger configured")
		}
		if _, err := p.ledger.CreateAndAttach(ctx, group, path, p.cfg.Notes); err != nil {
			return nil, err
		}
		slog.Info("firefly_sent", "total_transactions", len(group.Transactions))
	}

	slog.Info("process_file_complete", "total_transactions", len(group.Transactions))
	return group, nil
}

// hints fetches the two ledger context lists once per document. The lists
// cannot change mid-document, so every page shares one snapshot. Without a
// ledger the extractor runs with empty hints.
func (p *Pipeline) hints(ctx context.Context) (extract.Hints, error) {
	if p.ledger == nil {
		return extract.Hints{}, nil
	}

	categories, err := p.ledger.Categories(ctx)
	if err != nil {
		return extract.Hints{}, err
	}
	merchants, err := p.ledger.ExpenseAccounts(ctx)
	if err != nil {
		return extract.Hints{}, err
	}
	return extract.Hints{Categories: categories, Merchants: merchants}, nil
}
