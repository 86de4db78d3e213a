package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/rsjoberg/firefly-receipts/internal/bot"
	"github.com/rsjoberg/firefly-receipts/internal/extract"
	"github.com/rsjoberg/firefly-receipts/internal/ledger"
	"github.com/rsjoberg/firefly-receipts/internal/pipeline"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A local .env supplies the same variables the flags read
	_ = godotenv.Load()

	fs := ff.NewFlagSet("firefly-receipts")
	var (
		firefly       = fs.BoolLong("firefly", "Send the CLI input to Firefly III")
		fireflyURL    = fs.StringLong("firefly-url", "", "Firefly III base URL")
		fireflyToken  = fs.StringLong("firefly-token", "", "Firefly III personal access token")
		fireflyOn     = fs.BoolLong("firefly-enabled", "Submit bot-received receipts to Firefly III")
		extractorType = fs.StringLong("extractor", "openai", "Extraction backend: 'openai' or 'gemini'")
		openaiKey     = fs.StringLong("openai-key", "", "OpenAI API key")
		openaiModel   = fs.StringLong("openai-model", "gpt-5-mini", "OpenAI vision model name")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		botToken      = fs.StringLong("bot-token", "", "Telegram bot token")
		currencyCode  = fs.StringLong("currency-code", "SEK", "Default currency code for undetermined receipts")
		currencyID    = fs.StringLong("currency-id", "10", "Firefly currency id matching the default currency code")
		sourceAccount = fs.StringLong("source-account", "Extra", "Fixed source account name for created transactions")
		dpi           = fs.IntLong("dpi", 300, "PDF page render density")
		maxLongSide   = fs.IntLong("max-long-side", 1800, "Normalized image long-side cap in pixels")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPTS"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	setupLogging(*logLevel)

	if *fireflyURL == "" || *fireflyToken == "" {
		slog.Error("Firefly III URL and token are required. Set --firefly-url/--firefly-token or RECEIPTS_FIREFLY_URL/RECEIPTS_FIREFLY_TOKEN")
		os.Exit(1)
	}
	ledgerClient := ledger.NewClient(*fireflyURL, *fireflyToken)

	defaults := extract.Defaults{
		CurrencyCode: *currencyCode,
		CurrencyID:   *currencyID,
		SourceName:   *sourceAccount,
	}

	var (
		extractor extract.Extractor
		err       error
	)
	switch *extractorType {
	case "openai":
		slog.Info("Initializing OpenAI extractor...", "model", *openaiModel)
		extractor, err = extract.NewOpenAI(*openaiKey, *openaiModel, defaults)
	case "gemini":
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = extract.NewGemini(*geminiKey, *geminiModel, defaults)
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "openai or gemini")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	p := pipeline.New(extractor, ledgerClient, pipeline.Config{
		DPI:         float64(*dpi),
		MaxLongSide: *maxLongSide,
		Notes:       "Uploaded via bot",
	})

	// With a positional input path the process runs once and exits;
	// without one it becomes the Telegram bot.
	if args := fs.GetArgs(); len(args) > 0 {
		input := args[0]
		if _, err := os.Stat(input); err != nil {
			fmt.Fprintln(os.Stderr, "File not found.")
			os.Exit(1)
		}
		if _, err := p.Process(context.Background(), input, *firefly); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *botToken == "" {
		slog.Error("Telegram bot token is required. Set --bot-token or RECEIPTS_BOT_TOKEN")
		os.Exit(1)
	}
	b, err := bot.New(*botToken, p, *fireflyOn, *currencyCode)
	if err != nil {
		slog.Error("Failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting Telegram polling...")
	b.Start()
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
