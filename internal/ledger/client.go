package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// SubmitError indicates a non-2xx response from the transaction endpoint.
type SubmitError struct {
	Status int
	Body   string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("firefly transaction error: %d %s", e.Status, e.Body)
}

// QueryError indicates a non-200 response from a read-only lookup.
type QueryError struct {
	Status int
	Body   string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("firefly query error: %d %s", e.Status, e.Body)
}

// Client talks to a Firefly III instance over its v1 REST API.
type Client struct {
	baseURL string
	token   string

	queryClient  *http.Client // account/category lookups
	submitClient *http.Client // transaction and attachment creation
	uploadClient *http.Client // raw file uploads
}

// NewClient creates a Firefly III client for the given base URL and personal
// access token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:      baseURL,
		token:        token,
		queryClient:  &http.Client{Timeout: 30 * time.Second},
		submitClient: &http.Client{Timeout: 60 * time.Second},
		uploadClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.api+json")
	return req, nil
}

// SubmitTransactions posts a transaction group to /api/v1/transactions.
// Any non-2xx response surfaces as a SubmitError carrying the ledger's
// status code and body verbatim.
func (c *Client) SubmitTransactions(ctx context.Context, group *TransactionGroup) (*SubmitResponse, error) {
	payload, err := json.Marshal(group)
	if err != nil {
		return nil, fmt.Errorf("marshaling transaction group: %w", err)
	}

	req, err := c.newRequest(ctx, "POST", c.baseURL+"/api/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.submitClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling firefly transactions API: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		slog.Error("firefly_tx_error", "status", resp.StatusCode, "body", string(body))
		return nil, &SubmitError{Status: resp.StatusCode, Body: string(body)}
	}

	var result SubmitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding firefly response: %w", err)
	}
	slog.Info("firefly_tx_success", "groups", len(result.Data))
	return &result, nil
}

// ExpenseAccounts returns the names of all expense-type accounts.
func (c *Client) ExpenseAccounts(ctx context.Context) ([]string, error) {
	return c.listNames(ctx, "/api/v1/accounts?type=expense")
}

// Categories returns the names of all known categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	return c.listNames(ctx, "/api/v1/categories")
}

func (c *Client) listNames(ctx context.Context, path string) ([]string, error) {
	req, err := c.newRequest(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.queryClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling firefly API: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		slog.Error("firefly_query_error", "path", path, "status", resp.StatusCode, "body", string(body))
		return nil, &QueryError{Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Data []struct {
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding firefly response: %w", err)
	}

	names := make([]string, 0, len(payload.Data))
	for _, d := range payload.Data {
		names = append(names, d.Attributes.Name)
	}
	return names, nil
}

// createAttachment registers an attachment record against a journal entry
// and returns the attachment id and upload URL.
func (c *Client) createAttachment(ctx context.Context, journalID, title, filename, notes string) (string, string, error) {
	payload, err := json.Marshal(map[string]string{
		"attachable_id":   journalID,
		"attachable_type": "TransactionJournal",
		"title":           title,
		"filename":        filename,
		"notes":           notes,
	})
	if err != nil {
		return "", "", fmt.Errorf("marshaling attachment: %w", err)
	}

	req, err := c.newRequest(ctx, "POST", c.baseURL+"/api/v1/attachments", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.submitClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("calling firefly attachments API: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", &SubmitError{Status: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				UploadURL string `json:"upload_url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", "", fmt.Errorf("decoding attachment response: %w", err)
	}
	return result.Data.ID, result.Data.Attributes.UploadURL, nil
}

// uploadAttachment streams the file's raw bytes to the upload URL returned
// by createAttachment.
func (c *Client) uploadAttachment(ctx context.Context, uploadURL, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening receipt file: %w", err)
	}
	defer f.Close()

	req, err := c.newRequest(ctx, "POST", uploadURL, f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return &SubmitError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// CreateAndAttach submits the group, then attaches the original receipt file
// to every journal entry the ledger created. Attachment failures are
// independent per journal: they are logged and skipped, never aborting the
// remaining journals or the overall submission.
func (c *Client) CreateAndAttach(ctx context.Context, group *TransactionGroup, receiptPath, notes string) (*SubmitResponse, error) {
	result, err := c.SubmitTransactions(ctx, group)
	if err != nil {
		return nil, err
	}

	journalIDs := result.JournalIDs()
	slog.Info("journals_found", "count", len(journalIDs), "journals", journalIDs)

	filename := filepath.Base(receiptPath)
	for _, jid := range journalIDs {
		attachmentID, uploadURL, err := c.createAttachment(ctx, jid, filename, filename, notes)
		if err != nil {
			slog.Error("firefly_attach_create_error", "journal_id", jid, "error", err)
			continue
		}
		if uploadURL == "" {
			slog.Error("no_upload_url", "journal_id", jid, "attachment_id", attachmentID)
			continue
		}
		if err := c.uploadAttachment(ctx, uploadURL, receiptPath); err != nil {
			slog.Error("firefly_attach_upload_error", "journal_id", jid, "error", err)
			continue
		}
		slog.Info("receipt_attached", "journal_id", jid, "attachment_id", attachmentID)
	}

	return result, nil
}
