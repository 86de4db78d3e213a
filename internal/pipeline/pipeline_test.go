package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rsjoberg/firefly-receipts/internal/extract"
	"github.com/rsjoberg/firefly-receipts/internal/ledger"
)

func TestPipeline(t *testing.T) {
	// Disable logging during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Suite")
}

// fakeExtractor returns one pre-baked group per call, in call order
type fakeExtractor struct {
	groups []*ledger.TransactionGroup
	err    error
	calls  []string
	hints  []extract.Hints
}

func (f *fakeExtractor) ExtractPage(_ context.Context, imagePath string, hints extract.Hints) (*ledger.TransactionGroup, error) {
	f.calls = append(f.calls, imagePath)
	f.hints = append(f.hints, hints)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.calls) - 1
	if i >= len(f.groups) {
		return &ledger.TransactionGroup{Transactions: []ledger.Transaction{}}, nil
	}
	return f.groups[i], nil
}

func (f *fakeExtractor) Close() error { return nil }

type attachCall struct {
	group *ledger.TransactionGroup
	path  string
	notes string
}

// fakeLedger records CreateAndAttach calls and serves fixed lookups
type fakeLedger struct {
	categories []string
	accounts   []string
	queryErr   error
	attachErr  error
	attaches   []attachCall
}

func (f *fakeLedger) SubmitTransactions(context.Context, *ledger.TransactionGroup) (*ledger.SubmitResponse, error) {
	return &ledger.SubmitResponse{}, nil
}

func (f *fakeLedger) ExpenseAccounts(context.Context) ([]string, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.accounts, nil
}

func (f *fakeLedger) Categories(context.Context) ([]string, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.categories, nil
}

func (f *fakeLedger) CreateAndAttach(_ context.Context, group *ledger.TransactionGroup, receiptPath, notes string) (*ledger.SubmitResponse, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.attaches = append(f.attaches, attachCall{group: group, path: receiptPath, notes: notes})
	return &ledger.SubmitResponse{}, nil
}

func tx(description, amount string) ledger.Transaction {
	return ledger.Transaction{
		Type:        "withdrawal",
		Amount:      amount,
		Date:        "2024-01-15",
		Description: description,
	}
}

var _ = Describe("Process", func() {
	var (
		extractor *fakeExtractor
		lg        *fakeLedger
		pages     []string
		renderErr error
		normErr   error
		submit    bool

		group *ledger.TransactionGroup
		err   error
	)

	BeforeEach(func() {
		extractor = &fakeExtractor{}
		lg = &fakeLedger{
			categories: []string{"Groceries", "Pharmacy"},
			accounts:   []string{"BAUHAUS", "ICA"},
		}
		pages = []string{"page1.png"}
		renderErr = nil
		normErr = nil
		submit = false
	})

	JustBeforeEach(func() {
		render := func(path string, dpi float64) ([]string, error) {
			if renderErr != nil {
				return nil, renderErr
			}
			return pages, nil
		}
		normalize := func(path string, maxLongSide int) (string, error) {
			if normErr != nil {
				return "", normErr
			}
			return path + "_prepped", nil
		}
		var l ledger.Ledger
		if lg != nil {
			l = lg
		}
		p := NewWithDeps(extractor, l, Config{Notes: "Uploaded via bot"}, render, normalize)
		group, err = p.Process(context.Background(), "receipt.pdf", submit)
	})

	When("a two-page document contributes transactions on both pages", func() {
		BeforeEach(func() {
			pages = []string{"page1.png", "page2.png"}
			extractor.groups = []*ledger.TransactionGroup{
				{GroupTitle: "Hardware & DIY", Transactions: []ledger.Transaction{tx("Drill", "89.95"), tx("Cable", "453.25")}},
				{GroupTitle: "Other", Transactions: []ledger.Transaction{tx("Screws", "12.00")}},
			}
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should concatenate transactions in page order", func() {
			Expect(group.Transactions).To(HaveLen(3))
			Expect(group.Transactions[0].Description).To(Equal("Drill"))
			Expect(group.Transactions[1].Description).To(Equal("Cable"))
			Expect(group.Transactions[2].Description).To(Equal("Screws"))
		})

		It("should keep the first page's title", func() {
			Expect(group.GroupTitle).To(Equal("Hardware & DIY"))
		})

		It("should extract the normalized page images", func() {
			Expect(extractor.calls).To(Equal([]string{"page1.png_prepped", "page2.png_prepped"}))
		})

		It("should set fire_webhooks", func() {
			Expect(group.FireWebhooks).To(BeTrue())
		})
	})

	When("only a later page supplies a title", func() {
		BeforeEach(func() {
			pages = []string{"page1.png", "page2.png"}
			extractor.groups = []*ledger.TransactionGroup{
				{GroupTitle: "", Transactions: []ledger.Transaction{tx("Milk", "12.50")}},
				{GroupTitle: "Groceries", Transactions: []ledger.Transaction{}},
			}
		})

		It("should take the first non-empty title", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(group.GroupTitle).To(Equal("Groceries"))
		})
	})

	When("the second page has no items", func() {
		BeforeEach(func() {
			pages = []string{"page1.png", "page2.png"}
			extractor.groups = []*ledger.TransactionGroup{
				{GroupTitle: "Groceries", Transactions: []ledger.Transaction{tx("Milk", "12.50"), tx("Bread", "24.00")}},
				{Transactions: []ledger.Transaction{}},
			}
		})

		It("should match page one's item count", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(group.Transactions).To(HaveLen(2))
			Expect(group.GroupTitle).To(Equal("Groceries"))
		})
	})

	When("no page supplies a title", func() {
		BeforeEach(func() {
			extractor.groups = []*ledger.TransactionGroup{
				{Transactions: []ledger.Transaction{tx("Milk", "12.50")}},
			}
		})

		It("should leave the title empty", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(group.GroupTitle).To(BeEmpty())
		})
	})

	When("rendering fails", func() {
		BeforeEach(func() {
			renderErr = errors.New("corrupt document")
		})

		It("should abort before extracting anything", func() {
			Expect(err).To(MatchError("corrupt document"))
			Expect(extractor.calls).To(BeEmpty())
		})
	})

	When("normalization fails", func() {
		BeforeEach(func() {
			normErr = errors.New("unreadable image")
		})

		It("should abort the whole document", func() {
			Expect(err).To(MatchError("unreadable image"))
			Expect(group).To(BeNil())
		})
	})

	When("extraction fails on any page", func() {
		BeforeEach(func() {
			submit = true
			extractor.err = errors.New("service unavailable")
		})

		It("should abort without submitting", func() {
			Expect(err).To(MatchError("service unavailable"))
			Expect(lg.attaches).To(BeEmpty())
		})
	})

	When("submission is requested", func() {
		BeforeEach(func() {
			submit = true
			extractor.groups = []*ledger.TransactionGroup{
				{GroupTitle: "Groceries", Transactions: []ledger.Transaction{tx("Milk", "12.50")}},
			}
		})

		It("should hand the group and the original path to the ledger", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(lg.attaches).To(HaveLen(1))
			Expect(lg.attaches[0].path).To(Equal("receipt.pdf"))
			Expect(lg.attaches[0].notes).To(Equal("Uploaded via bot"))
			Expect(lg.attaches[0].group.Transactions).To(HaveLen(1))
		})
	})

	When("submission is not requested", func() {
		BeforeEach(func() {
			extractor.groups = []*ledger.TransactionGroup{
				{Transactions: []ledger.Transaction{tx("Milk", "12.50")}},
			}
		})

		It("should still return the group without submitting", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(group.Transactions).To(HaveLen(1))
			Expect(lg.attaches).To(BeEmpty())
		})
	})

	When("ledger submission fails", func() {
		BeforeEach(func() {
			submit = true
			lg.attachErr = &ledger.SubmitError{Status: 422, Body: `{"message":"validation"}`}
			extractor.groups = []*ledger.TransactionGroup{
				{Transactions: []ledger.Transaction{tx("Milk", "12.50")}},
			}
		})

		It("should surface the submit error", func() {
			var submitErr *ledger.SubmitError
			Expect(errors.As(err, &submitErr)).To(BeTrue())
			Expect(submitErr.Status).To(Equal(422))
		})
	})

	Describe("ledger hints", func() {
		BeforeEach(func() {
			extractor.groups = []*ledger.TransactionGroup{
				{Transactions: []ledger.Transaction{tx("Milk", "12.50")}},
			}
		})

		It("should pass the category and merchant lists to every page", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(extractor.hints).To(HaveLen(1))
			Expect(extractor.hints[0].Categories).To(Equal([]string{"Groceries", "Pharmacy"}))
			Expect(extractor.hints[0].Merchants).To(Equal([]string{"BAUHAUS", "ICA"}))
		})

		When("the lookups fail", func() {
			BeforeEach(func() {
				lg.queryErr = &ledger.QueryError{Status: 500, Body: "boom"}
			})

			It("should abort the document", func() {
				var queryErr *ledger.QueryError
				Expect(errors.As(err, &queryErr)).To(BeTrue())
				Expect(extractor.calls).To(BeEmpty())
			})
		})
	})

	When("no ledger is configured", func() {
		BeforeEach(func() {
			lg = nil
			extractor.groups = []*ledger.TransactionGroup{
				{Transactions: []ledger.Transaction{tx("Milk", "12.50")}},
			}
		})

		It("should run with empty hints", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(extractor.hints[0]).To(Equal(extract.Hints{}))
		})

		When("submission is requested anyway", func() {
			BeforeEach(func() {
				submit = true
			})

			It("should fail", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
