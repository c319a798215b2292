// Package main provides the LAWAgent CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sandjman56/LAWAgent-test/internal/analyze"
	"github.com/sandjman56/LAWAgent-test/internal/chunk"
	"github.com/sandjman56/LAWAgent-test/internal/config"
	"github.com/sandjman56/LAWAgent-test/internal/extract"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
	"github.com/sandjman56/LAWAgent-test/internal/pipeline"
	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

var (
	cfgFile    string
	outputJSON bool

	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "lawagent-cli",
	Short: "LAWAgent CLI for document processing and issue spotting",
	Long: `LAWAgent CLI drives the document pipeline without the API server.

Use this tool to:
- Apply database migrations
- Ingest and process a PDF from the local filesystem
- Inspect upload status and chunk counts
- Run the issue spotter over a processed upload

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      logFormat,
			ServiceName: "lawagent-cli",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*storage.Store, func(), error) {
	db, err := storage.Open(storage.OpenOptions{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return storage.NewStore(db), func() { _ = db.Close() }, nil
}

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			if err := storage.Migrate(ctx, store.DB()); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			color.Green("Migrations applied")
			return nil
		},
	}
}

// newProcessCmd creates the process subcommand.
func newProcessCmd() *cobra.Command {
	var (
		notes  string
		caseID string
	)

	cmd := &cobra.Command{
		Use:   "process <pdf-path>",
		Short: "Ingest a local PDF and run extraction + chunking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			files, err := storage.NewFileStore(cfg.Storage.DataDir)
			if err != nil {
				return err
			}

			src, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open source file: %w", err)
			}
			defer src.Close()

			uploadID := uuid.New()
			size, err := files.SavePDF(uploadID, src, cfg.MaxUploadBytes())
			if err != nil {
				return fmt.Errorf("store document: %w", err)
			}

			upload := &storage.Upload{
				ID:        uploadID,
				Filename:  filepath.Base(path),
				SizeBytes: size,
				Notes:     optional(notes),
				CaseID:    optional(caseID),
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			if err := store.Uploads.Create(ctx, upload); err != nil {
				return fmt.Errorf("record upload: %w", err)
			}

			extractor := extract.New(cfg.Storage.MaxPages)
			chunkOpts := chunk.Options{Size: cfg.Pipeline.ChunkSize, Overlap: cfg.Pipeline.ChunkOverlap}
			processor := pipeline.NewProcessor(store, files, extractor, chunkOpts, logger)

			if err := processor.ProcessUpload(ctx, uploadID); err != nil {
				return fmt.Errorf("process upload: %w", err)
			}

			return printUploadStatus(ctx, store, uploadID)
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes attached to the upload")
	cmd.Flags().StringVar(&caseID, "case-id", "", "case/grouping tag")
	return cmd
}

// newStatusCmd creates the status subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <upload-id>",
		Short: "Show the processing state of an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploadID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid upload id: %w", err)
			}

			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			return printUploadStatus(ctx, store, uploadID)
		},
	}
}

// newAnalyzeCmd creates the analyze subcommand.
func newAnalyzeCmd() *cobra.Command {
	var (
		prompt    string
		model     string
		maxTokens int
	)

	cmd := &cobra.Command{
		Use:   "analyze <upload-id>",
		Short: "Run the issue spotter over a processed upload",
		Long: `Analyze creates an analysis job for the upload and runs it in-process,
chunk by chunk, showing progress. The upload must be ready or done.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploadID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid upload id: %w", err)
			}

			store, closeDB, err := openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Minute)
			defer cancel()

			upload, err := store.Uploads.GetByID(ctx, uploadID)
			if err != nil {
				return fmt.Errorf("load upload: %w", err)
			}
			if upload.Status != storage.UploadStatusReady && upload.Status != storage.UploadStatusDone {
				return fmt.Errorf("upload is %s; analysis requires ready or done", upload.Status)
			}

			analyzer, err := buildAnalyzer()
			if err != nil {
				return err
			}

			analysis := &storage.Analysis{UploadID: uploadID}
			if err := store.Analyses.Create(ctx, analysis); err != nil {
				return fmt.Errorf("create analysis: %w", err)
			}

			spotter := pipeline.NewSpotter(store, analyzer, logger)
			opts := analyze.Options{Prompt: prompt, Model: model, MaxTokens: maxTokens}

			done := make(chan error, 1)
			go func() {
				done <- spotter.Run(ctx, analysis.ID, uploadID, opts)
			}()

			if !outputJSON {
				trackProgress(ctx, store, analysis.ID)
			}

			if err := <-done; err != nil {
				return fmt.Errorf("run analysis: %w", err)
			}

			return printAnalysisResult(ctx, store, analysis.ID)
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "override the analyzer system prompt")
	cmd.Flags().StringVar(&model, "model", "", "override the analyzer model")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "cap the analyzer response tokens")
	return cmd
}

func buildAnalyzer() (analyze.Analyzer, error) {
	if cfg.Analyzer.Provider == "openai" {
		return analyze.NewOpenAIAnalyzer(analyze.OpenAIConfig{
			APIKey:         cfg.Analyzer.APIKey,
			Model:          cfg.Analyzer.Model,
			MaxTokens:      cfg.Analyzer.MaxTokens,
			RequestTimeout: cfg.Analyzer.RequestTimeout,
		})
	}
	return analyze.NewStubAnalyzer(), nil
}

// trackProgress polls the analysis row and renders a progress bar until
// the job reaches a terminal state.
func trackProgress(ctx context.Context, store *storage.Store, analysisID uuid.UUID) {
	var bar *progressbar.ProgressBar

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(250 * time.Millisecond):
		}

		analysis, err := store.Analyses.GetByID(ctx, analysisID)
		if err != nil {
			return
		}

		if analysis.Result != nil && analysis.Result.Progress != nil {
			p := analysis.Result.Progress
			if bar == nil && p.TotalChunks > 0 {
				bar = progressbar.NewOptions(p.TotalChunks,
					progressbar.OptionSetDescription("analyzing"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			if bar != nil {
				_ = bar.Set(p.CompletedChunks)
			}
		}

		if analysis.Status == storage.AnalysisStatusDone || analysis.Status == storage.AnalysisStatusError {
			if bar != nil {
				_ = bar.Finish()
			}
			return
		}
	}
}

func printUploadStatus(ctx context.Context, store *storage.Store, uploadID uuid.UUID) error {
	upload, err := store.Uploads.GetByID(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}
	chunks, err := store.Chunks.CountByUpload(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}

	if outputJSON {
		return printJSON(os.Stdout, map[string]interface{}{
			"upload_id":  upload.ID,
			"filename":   upload.Filename,
			"status":     upload.Status,
			"pages":      upload.Pages,
			"num_chunks": chunks,
			"size_bytes": upload.SizeBytes,
			"error":      upload.Error,
		})
	}

	fmt.Printf("Upload:   %s\n", upload.ID)
	fmt.Printf("Filename: %s\n", upload.Filename)
	fmt.Printf("Status:   %s\n", colorStatus(string(upload.Status)))
	fmt.Printf("Pages:    %d\n", upload.Pages)
	fmt.Printf("Chunks:   %d\n", chunks)
	if upload.Error != nil {
		fmt.Printf("Error:    %s\n", color.RedString(*upload.Error))
	}
	return nil
}

func printAnalysisResult(ctx context.Context, store *storage.Store, analysisID uuid.UUID) error {
	analysis, err := store.Analyses.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}

	if outputJSON {
		return printJSON(os.Stdout, analysis)
	}

	fmt.Printf("Analysis: %s\n", analysis.ID)
	fmt.Printf("Status:   %s\n", colorStatus(string(analysis.Status)))
	if analysis.Error != nil {
		fmt.Printf("Error:    %s\n", color.RedString(*analysis.Error))
		return nil
	}
	if analysis.Result == nil || analysis.Result.Report == nil {
		return nil
	}

	report := analysis.Result.Report
	fmt.Printf("\n%s\n%s\n", color.New(color.Bold).Sprint("Summary"), report.DocumentSummary)
	fmt.Printf("\n%s (%d)\n", color.New(color.Bold).Sprint("Issues"), len(report.Issues))
	for _, issue := range report.Issues {
		fmt.Printf("  [%s] %s (pages %v)\n", colorSeverity(issue.Severity), issue.Title, issue.PageRange)
	}
	return nil
}

func colorStatus(status string) string {
	switch status {
	case "ready", "done":
		return color.GreenString(status)
	case "error":
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

func colorSeverity(severity string) string {
	switch severity {
	case "high":
		return color.RedString(severity)
	case "medium":
		return color.YellowString(severity)
	default:
		return color.CyanString(severity)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
