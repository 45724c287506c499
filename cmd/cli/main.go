package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/archive"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/gemini"
	infraBQ "github.com/dvloznov/finance-assistant/internal/infra/bigquery"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/session"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(log)
	case "exchanges":
		runExchanges(log)
	case "migrate":
		runMigrate(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Assistant CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze    Extract transactions from text, an image or an audio clip")
	fmt.Println("  exchanges  List exchanges recorded in BigQuery for a session")
	fmt.Println("  migrate    Create the BigQuery exchanges table if missing")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runAnalyze(log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	prompt := fs.String("prompt", "", "User prompt describing the transaction(s)")
	systemFile := fs.String("system", "", "Path to a file overriding the built-in system prompt")
	image := fs.String("image", "", "Image to analyze (local path or gs:// URI)")
	audio := fs.String("audio", "", "Audio clip to analyze (local path or gs:// URI)")
	envFile := fs.String("env", ".env", "Path to an optional .env file")
	fs.Parse(os.Args[2:])

	if *prompt == "" && *image == "" && *audio == "" {
		log.Fatal().Msg("Usage: cli analyze -prompt TEXT [-system FILE] [-image PATH] [-audio PATH]")
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	req := assistant.Request{UserPrompt: *prompt}
	if *systemFile != "" {
		data, err := os.ReadFile(*systemFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", *systemFile).Msg("Failed to read system prompt")
		}
		system := string(data)
		req.SystemPrompt = &system
	}

	imageUpload, err := loadUpload(ctx, *image)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load image")
	}
	audioUpload, err := loadUpload(ctx, *audio)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load audio")
	}

	req.Attachment, err = assistant.SelectAttachment(ctx, imageUpload, audioUpload)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read attachment")
	}

	gen, err := gemini.NewClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	svc := assistant.NewService(gen, cfg.Gemini.Model, assistant.WithHistoryWindow(cfg.Server.HistoryWindow))

	reply, err := svc.Analyze(ctx, session.New("cli"), req)
	if err != nil {
		log.Fatal().Err(err).Str("kind", string(assistant.KindOf(err))).Msg("Analysis failed")
	}

	fmt.Println(reply)
}

// loadUpload reads src into memory so the attachment can be opened like a
// form upload. An empty src yields nil.
func loadUpload(ctx context.Context, src string) (*assistant.Upload, error) {
	if src == "" {
		return nil, nil
	}

	var (
		data     []byte
		filename string
		err      error
	)
	if strings.HasPrefix(src, "gs://") {
		filename = archive.Filename(src)
		data, err = archive.FetchURI(ctx, src)
	} else {
		filename = filepath.Base(src)
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, err
	}

	return &assistant.Upload{
		Filename:    filename,
		ContentType: mediaType(filename),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}, nil
}

// mediaType guesses the media type from the file extension. Unknown types
// are left empty so the attachment default applies.
func mediaType(filename string) string {
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

func runExchanges(log zerolog.Logger) {
	fs := flag.NewFlagSet("exchanges", flag.ExitOnError)
	sessionID := fs.String("session", "", "Session ID to list")
	limit := fs.Int("limit", 50, "Maximum number of exchanges")
	envFile := fs.String("env", ".env", "Path to an optional .env file")
	fs.Parse(os.Args[2:])

	if *sessionID == "" {
		log.Fatal().Msg("Error: -session is required")
	}

	repo := openRepository(log, *envFile)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	rows, err := repo.ListExchangesBySession(ctx, *sessionID, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list exchanges")
	}

	fmt.Printf("\n=== Exchanges for %s (%d) ===\n", *sessionID, len(rows))
	for i, row := range rows {
		fmt.Printf("\n%d. %s  [%s]\n", i+1, row.CreatedTS.Format(time.RFC3339), row.AttachmentKind)
		fmt.Printf("   Model:    %s\n", row.ModelName)
		if row.UserPrompt != "" {
			fmt.Printf("   Prompt:   %s\n", row.UserPrompt)
		}
		if row.AttachmentURI.Valid {
			fmt.Printf("   File:     %s\n", row.AttachmentURI.StringVal)
		}
		fmt.Printf("   Response:\n%s\n", indent(row.ResponseText, "     "))
	}
	fmt.Println()
}

func runMigrate(log zerolog.Logger) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	envFile := fs.String("env", ".env", "Path to an optional .env file")
	fs.Parse(os.Args[2:])

	repo := openRepository(log, *envFile)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	fmt.Println("Exchanges table is ready.")
}

func openRepository(log zerolog.Logger, envFile string) *infraBQ.ExchangeRepository {
	// BigQuery commands do not call the model, so the API key is not required.
	if err := config.LoadEnvFile(envFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	rc, err := config.RecordingFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if rc.BQProjectID == "" {
		log.Fatal().Msg("Error: BQ_PROJECT_ID is required")
	}

	repo, err := infraBQ.NewExchangeRepository(context.Background(), rc.BQProjectID, rc.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	return repo
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
