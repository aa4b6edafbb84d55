package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/lenslab/photocoach/internal/api"
	"github.com/lenslab/photocoach/internal/coach"
	"github.com/lenslab/photocoach/internal/config"
	"github.com/lenslab/photocoach/internal/grounding"
	"github.com/lenslab/photocoach/internal/ingest"
	"github.com/lenslab/photocoach/internal/knowledge"
	"github.com/lenslab/photocoach/internal/llm"
	"github.com/lenslab/photocoach/internal/orchestrator"
	"github.com/lenslab/photocoach/internal/retrieval"
	"github.com/lenslab/photocoach/internal/session"
	"github.com/lenslab/photocoach/internal/storage"
	"github.com/lenslab/photocoach/internal/vision"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the photocoach server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running photocoach server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP tool server on stdio (for agent clients)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show photocoach system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "photocoach.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// app holds the wired coaching pipeline shared by the server and the
// offline eval command.
type app struct {
	store     *storage.Store
	client    *llm.Client
	entries   []knowledge.Entry
	corpus    *knowledge.Corpus
	retriever *retrieval.Retriever
	orch      *orchestrator.Orchestrator
}

func buildApp(cfg config.Config) (*app, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	var client *llm.Client
	if cfg.Gemini.BaseURL != "" {
		client = llm.NewClientWithBaseURL(cfg.Gemini.APIKey, cfg.Gemini.GenModel, cfg.Gemini.EmbedModel, cfg.Gemini.BaseURL)
	} else {
		client = llm.NewClient(cfg.Gemini.APIKey, cfg.Gemini.GenModel, cfg.Gemini.EmbedModel)
	}

	entries, err := knowledge.Load()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading knowledge set: %w", err)
	}
	corpus := knowledge.NewCorpus(client, entries)

	embedder := retrieval.NewAPIEmbedder(client)
	vectors := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectors)

	logger := slog.Default()

	groundOpts := []grounding.Option{
		grounding.WithMaxCitations(cfg.Grounding.MaxCitations),
		grounding.WithDocumentCutoff(float32(cfg.Grounding.DocumentCutoff)),
	}
	if cfg.Grounding.DocumentsEnabled {
		groundOpts = append(groundOpts, grounding.WithDocuments(retriever))
	}
	grounder := grounding.New(corpus, logger, groundOpts...)

	sessions := session.NewManager(store)
	analyzer := vision.NewAnalyzer(client, logger)
	advisor := coach.New(client, corpus, logger)
	orch := orchestrator.New(sessions, analyzer, advisor, grounder, logger)

	return &app{
		store:     store,
		client:    client,
		entries:   entries,
		corpus:    corpus,
		retriever: retriever,
		orch:      orch,
	}, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "photocoach version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("photocoach is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("photocoach is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// The admin ingest surface always requires a bearer token. Generate
	// an ephemeral one when none is configured.
	apiToken := cfg.API.Token
	if apiToken == "" {
		apiToken = uuid.NewString()
		slog.Warn("no API token configured, generated one for this run", "env", "PHOTOCOACH_API_TOKEN")
		fmt.Fprintf(os.Stderr, "API token: %s\n", apiToken)
	}

	appHandler := api.NewAppHandler(api.AppDeps{
		Store:        a.store,
		Orchestrator: a.orch,
		Corpus:       a.corpus,
		Token:        apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// Start ingest worker.
	pollInterval, err := time.ParseDuration(cfg.Ingest.PollInterval)
	if err != nil {
		slog.Warn("invalid ingest poll interval, using default 2s", "value", cfg.Ingest.PollInterval, "error", err)
		pollInterval = 2 * time.Second
	}
	worker := ingest.NewWorker(a.store, a.retriever, pollInterval)
	go worker.Run(ctx)

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "photocoach listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMCP serves MCP over stdio only. stdout belongs to the JSON-RPC
// stream, so all human output goes to stderr.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.store.Close()

	pollInterval, err := time.ParseDuration(cfg.Ingest.PollInterval)
	if err != nil {
		pollInterval = 2 * time.Second
	}
	worker := ingest.NewWorker(a.store, a.retriever, pollInterval)
	go worker.Run(ctx)

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:   a.store,
		Coach:   a.orch,
		Corpus:  a.corpus,
		Entries: a.entries,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("photocoach is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop photocoach (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to photocoach (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Gen model", "%s", cfg.Gemini.GenModel)
	printStatus("Embed model", "%s", cfg.Gemini.EmbedModel)

	// Show document count if the server is running and a token is set.
	if running && cfg.API.Token != "" {
		req, err := http.NewRequest("GET", serverURL+"/v1/documents?limit=100", nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+cfg.API.Token)
			if docsResp, err := client.Do(req); err == nil {
				var docs []json.RawMessage
				if json.NewDecoder(docsResp.Body).Decode(&docs) == nil {
					printStatus("Documents", "%s", countLabel(len(docs), 100))
				}
				docsResp.Body.Close()
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
