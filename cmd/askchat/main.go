// Package main is the askchat backend CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/askchat/askchat-ai-backend/internal/answer"
	"github.com/askchat/askchat-ai-backend/internal/backfill"
	"github.com/askchat/askchat-ai-backend/internal/config"
	"github.com/askchat/askchat-ai-backend/internal/embedding"
	"github.com/askchat/askchat-ai-backend/internal/ingest"
	"github.com/askchat/askchat-ai-backend/internal/models"
	"github.com/askchat/askchat-ai-backend/internal/retrieval"
	"github.com/askchat/askchat-ai-backend/internal/server"
	"github.com/askchat/askchat-ai-backend/internal/store"
	"github.com/askchat/askchat-ai-backend/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/askchat/config.yaml"
	defaultServerURL  = "http://localhost:8000"
	tokenEnv          = "ASKCHAT_BACKEND_TOKEN"
)

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory, so running from the project dir
// picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Secrets (API keys, shared token) come from the environment; a local
	// .env file is a convenience for development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "backfill":
		runBackfill()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("askchat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-message and per-query events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Bool("auth_enabled", cfg.Auth.Token != ""),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watcher *backfill.Watcher
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Backfill.Directory != "" {
		runnerOpts := []backfill.RunnerOption{backfill.WithLogger(logger)}
		watchOpts := []backfill.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, backfill.WithWatchLogger(logger))
		}
		watcher = backfill.NewWatcher(cfg.Backfill.Directory, backfill.NewRunner(components.Ingester, runnerOpts...), watchOpts...)
		if err := watcher.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start backfill watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Ingester,
		components.Engine,
		components.Store,
		components.Embedder,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watcher != nil {
		watcher.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = ingest directly into the local store)")
	chatID := fs.String("chat", "", "chat identifier")
	messageID := fs.String("message", "", "message identifier")
	senderID := fs.String("sender", "", "sender identifier")
	timestamp := fs.Int64("timestamp", 0, "message timestamp in epoch milliseconds (default: now)")
	_ = fs.Parse(os.Args[2:])

	if *chatID == "" || *messageID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: askchat ingest --chat <chatId> --message <messageId> [flags] <text>")
		os.Exit(1)
	}
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	ts := *timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	msg := &models.Message{
		ChatID:    *chatID,
		MessageID: *messageID,
		Text:      text,
		SenderID:  *senderID,
		Timestamp: ts,
	}

	if *serverURL != "" {
		var result models.IngestResult
		if err := postViaHTTP(*serverURL+"/embed-message", msg, &result); err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s (upserted=%d, collection=%s)\n", result.Status, result.Upserted, result.Collection)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	result, err := components.Ingester.IngestMessage(context.Background(), msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s (upserted=%d, collection=%s)\n", result.Status, result.Upserted, result.Collection)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = query the local store directly)")
	topK := fs.Int("top-k", 0, "number of sources to retrieve (default: 6)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: askchat ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	query := &models.AskQuery{Question: question, TopK: *topK}

	var response models.AskResponse
	if *serverURL != "" {
		if err := postViaHTTP(*serverURL+"/ask", query, &response); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		resp, err := components.Engine.Ask(context.Background(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		response = *resp
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Println(response.Answer)
		if len(response.Sources) > 0 {
			fmt.Println()
			fmt.Println("# sources")
			for _, s := range response.Sources {
				fmt.Printf("[%s:%s] score=%.4f %s\n", s.ChatID, s.MessageID, s.Score, utils.Truncate(s.Text, 120))
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runBackfill() {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: askchat backfill [flags] <export.jsonl>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	runner := backfill.NewRunner(components.Ingester, backfill.WithLogger(logger))
	stats, err := runner.RunFile(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("total=%d sent=%d skipped=%d failed=%d\n", stats.Total, stats.Sent, stats.Skipped, stats.Failed)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the local store directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		count, err := components.Store.Count(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
			os.Exit(1)
		}
		status = map[string]interface{}{
			"records":    count,
			"collection": cfg.Store.Collection,
			"config": map[string]interface{}{
				"embedding_provider":   components.Embedder.Name(),
				"embedding_dimensions": components.Embedder.Dimensions(),
				"store_backend":        cfg.Store.Backend,
				"chunk_size":           cfg.Retrieval.MaxCharsPerChunk,
				"chunk_overlap":        cfg.Retrieval.ChunkOverlap,
			},
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("records:     %v   # embedded chunks in the store\n", status["records"])
		fmt.Printf("collection:  %v\n", status["collection"])
		if cfgInfo, ok := status["config"].(map[string]interface{}); ok {
			fmt.Println()
			fmt.Println("# configuration")
			fmt.Printf("embedding_provider:  %v\n", cfgInfo["embedding_provider"])
			fmt.Printf("embedding_dims:      %v\n", cfgInfo["embedding_dimensions"])
			fmt.Printf("store_backend:       %v\n", cfgInfo["store_backend"])
			fmt.Printf("chunk_size:          %v\n", cfgInfo["chunk_size"])
			fmt.Printf("chunk_overlap:       %v\n", cfgInfo["chunk_overlap"])
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// postViaHTTP posts payload to the server, sending the shared token when one
// is set in the environment, and decodes the JSON response into out.
func postViaHTTP(url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := os.Getenv(tokenEnv); token != "" {
		req.Header.Set("X-AskChat-Token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Store    store.VectorStore
	Embedder embedding.Embedder
	Drafter  answer.Drafter
	Ingester *ingest.Ingester
	Engine   *retrieval.Engine
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vstore, err := store.NewVectorStore(&cfg.Store, embedder.Dimensions())
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	drafter, err := answer.NewDrafter(&cfg.Answer)
	if err != nil {
		_ = embedder.Close()
		_ = vstore.Close()
		return nil, fmt.Errorf("failed to initialize answer drafter: %w", err)
	}

	if logger != nil {
		logger.Info("components initialized",
			zap.String("embedding_provider", embedder.Name()),
			zap.Int("embedding_dimensions", embedder.Dimensions()),
			zap.String("store_backend", cfg.Store.Backend),
			zap.String("answer_provider", drafter.Name()))
	}

	ingOpts := []ingest.IngesterOption{}
	engOpts := []retrieval.EngineOption{}
	if debug && logger != nil {
		ingOpts = append(ingOpts, ingest.WithLogger(logger))
		engOpts = append(engOpts, retrieval.WithLogger(logger))
	}
	ingester, err := ingest.NewIngester(embedder, vstore, cfg, ingOpts...)
	if err != nil {
		_ = embedder.Close()
		_ = vstore.Close()
		return nil, fmt.Errorf("failed to initialize ingester: %w", err)
	}
	engine := retrieval.NewEngine(embedder, vstore, drafter, &cfg.Retrieval, engOpts...)

	return &Components{
		Store:    vstore,
		Embedder: embedder,
		Drafter:  drafter,
		Ingester: ingester,
		Engine:   engine,
	}, nil
}

func printUsage() {
	fmt.Println(`askchat - retrieval-backed QA over chat history

Usage:
  askchat server [flags]              Start the HTTP server
  askchat ingest [flags] <text>       Embed and index one message
  askchat ask [flags] <question>      Ask a question over indexed messages
  askchat backfill [flags] <file>     Bulk-load a JSONL chat export
  askchat status [flags]              Show store/index status
  askchat version                     Show version
  askchat help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/askchat/config.yaml)
  --debug            Enable debug logging (per-message and per-query events)

Ingest Flags:
  --config string     Config file path (for direct mode)
  --server string     Server URL (default: http://localhost:8000). Use empty (--server "") for direct store access.
  --chat string       Chat identifier (required)
  --message string    Message identifier (required)
  --sender string     Sender identifier
  --timestamp int     Epoch milliseconds (default: now)

Ask Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8000). Use empty (--server "") for direct store access.
  --top-k int        Number of sources to retrieve (default: 6)
  --output string    Output format: text or json (default: text)

Backfill Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8000). Use empty (--server "") for direct store access.
  --output string    Output format: text or json (default: text)

Environment:
  ASKCHAT_BACKEND_TOKEN   Shared secret sent as X-AskChat-Token (and required by the server when set)
  OPENAI_API_KEY          Enables the remote embedding and answer providers

Examples:
  askchat server
  askchat ingest --chat trip-2024 --message m1 "we booked the cabin for August 12"
  askchat ask "when did we book the cabin?"
  askchat ask --output json --top-k 3 "when did we book the cabin?"
  askchat backfill exports/chats.jsonl
  askchat status`)
}
