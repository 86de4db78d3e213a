package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v3"

	"github.com/rsjoberg/firefly-receipts/internal/pipeline"
)

// Bot is the Telegram front end: it receives document or photo messages,
// runs the pipeline on the downloaded file, and replies with a summary.
type Bot struct {
	tb              *tele.Bot
	pipeline        *pipeline.Pipeline
	submit          bool
	defaultCurrency string
}

// New creates the Telegram bot and registers its handlers. submit gates
// ledger submission for inbound files.
func New(token string, p *pipeline.Pipeline, submit bool, defaultCurrency string) (*Bot, error) {
	tb, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	b := &Bot{
		tb:              tb,
		pipeline:        p,
		submit:          submit,
		defaultCurrency: defaultCurrency,
	}
	tb.Handle(tele.OnDocument, b.handleFile)
	tb.Handle(tele.OnPhoto, b.handleFile)
	return b, nil
}

// Start runs the long-poll loop. It does not return.
func (b *Bot) Start() {
	b.tb.Start()
}

func (b *Bot) handleFile(c tele.Context) error {
	user := c.Sender().Username
	if user == "" {
		user = strconv.FormatInt(c.Sender().ID, 10)
	}
	log := slog.With("user", user)
	log.Info("received_file")

	var file tele.File
	switch {
	case c.Message().Document != nil:
		file = c.Message().Document.File
	case c.Message().Photo != nil:
		file = c.Message().Photo.File
	default:
		return nil
	}

	path, err := b.download(file)
	if err != nil {
		log.Error("file_download_failed", "error", err)
		return c.Reply(fmt.Sprintf("❌ Failed: %s", err))
	}
	log.Info("file_saved", "path", path)
	log.Info("firefly_enabled", "enabled", b.submit)

	group, err := b.pipeline.Process(context.Background(), path, b.submit)
	if err != nil {
		log.Error("receipt_parse_failed", "error", err)
		return c.Reply(fmt.Sprintf("❌ Failed: %s", err))
	}
	log.Info("receipt_parsed", "transactions", len(group.Transactions))

	return c.Reply(FormatSummary(group, b.defaultCurrency), tele.ModeHTML)
}

// download fetches the Telegram file into scratch storage and returns its
// local path. The extension is taken from Telegram's file path, falling back
// to .jpg for extensionless photos.
func (b *Bot) download(file tele.File) (string, error) {
	f, err := b.tb.FileByID(file.FileID)
	if err != nil {
		return "", fmt.Errorf("resolving telegram file: %w", err)
	}

	rc, err := b.tb.File(&f)
	if err != nil {
		return "", fmt.Errorf("downloading telegram file: %w", err)
	}
	defer rc.Close()

	suffix := filepath.Ext(f.FilePath)
	if suffix == "" {
		suffix = ".jpg"
	}

	path := filepath.Join(os.TempDir(), uuid.NewString()+suffix)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating scratch file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", fmt.Errorf("saving telegram file: %w", err)
	}
	return path, nil
}
