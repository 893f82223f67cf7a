// Package main is the faqrag CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/cli"
	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/corpus"
	"github.com/hyperjump/faqrag/internal/rag"
	"github.com/hyperjump/faqrag/internal/server"
	"github.com/hyperjump/faqrag/internal/tui"
	"github.com/hyperjump/faqrag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/faqrag/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
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
	// API keys usually live in .env during development; a missing file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "chat":
		runChat()
	case "build":
		runBuild()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("faqrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, creates the logger and the application context.
// A quiet logger discards everything unless debug is on.
func setup(configPath string, debugFlag, quiet bool) (*rag.App, *config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debugFlag
	logger := zap.NewNop()
	if !quiet || debugMode {
		logger, err = utils.NewLogger(debugMode, cfg.Log.Level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
	)
	return rag.NewApp(cfg, rag.WithLogger(logger)), cfg, logger, nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	app, cfg, logger, err := setup(*configPath, *debug, false)
	if err != nil {
		fatalf("%v", err)
	}
	defer logger.Sync()
	defer app.Close()

	if err := app.Warmup(context.Background()); err != nil {
		if errors.Is(err, corpus.ErrEmptyCorpus) {
			logger.Fatal("Failed to build index", zap.Error(err))
		}
		// Other failures are retried on the first question.
		logger.Warn("index warmup failed", zap.Error(err))
	}

	srv := server.NewServer(app, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty answers in-process")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: faqrag ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	question := joinQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}

	var answer string
	if *serverURL != "" {
		answer, err = askViaHTTP(*serverURL, question)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	} else {
		app, _, logger, err := setup(*configPath, *debug, true)
		if err != nil {
			fatalf("%v", err)
		}
		defer logger.Sync()
		defer app.Close()
		answer = app.AnswerQuestion(context.Background(), question)
	}
	if err := cli.WriteAnswer(os.Stdout, question, answer, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (written to stderr)")
	_ = fs.Parse(os.Args[2:])

	app, _, logger, err := setup(*configPath, *debug, true)
	if err != nil {
		fatalf("%v", err)
	}
	defer logger.Sync()
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(os.Stderr, "Bilgi bankası hazırlanıyor...")
	if err := app.Warmup(ctx); err != nil {
		if errors.Is(err, corpus.ErrEmptyCorpus) {
			fatalf("Failed to build index: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Uyarı: bilgi bankası hazırlanamadı, ilk soruda tekrar denenecek: %v\n", err)
	}

	p := tea.NewProgram(tui.New(ctx, app), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fatalf("Chat failed: %v", err)
	}
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	rebuild := fs.Bool("rebuild", false, "rebuild even if a valid index exists")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	app, _, logger, err := setup(*configPath, *debug, false)
	if err != nil {
		fatalf("%v", err)
	}
	defer logger.Sync()
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *rebuild {
		_, err = app.Rebuild(ctx)
	} else {
		err = app.Warmup(ctx)
	}
	if err != nil {
		fatalf("Build failed: %v", err)
	}
	st, err := app.Status(ctx)
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	_ = cli.WriteStatus(os.Stdout, st, cli.OutputText)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty inspects the index on disk")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	var st *rag.Status
	if *serverURL != "" {
		st, err = statusViaHTTP(*serverURL)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		app, _, logger, err := setup(*configPath, false, true)
		if err != nil {
			fatalf("%v", err)
		}
		defer logger.Sync()
		defer app.Close()
		st, err = app.Status(context.Background())
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// joinQuestion joins positional args so unquoted multi-word questions work.
func joinQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func askViaHTTP(serverURL, question string) (string, error) {
	body, err := json.Marshal(server.AskRequest{Question: question})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out server.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Answer, nil
}

func statusViaHTTP(serverURL string) (*rag.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var st rag.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &st, nil
}

func printUsage() {
	fmt.Println(`faqrag - Retrieval-augmented FAQ assistant

Usage:
  faqrag server [flags]           Start the HTTP server
  faqrag ask [flags] <question>   Answer one question
  faqrag chat [flags]             Start the terminal chat
  faqrag build [flags]            Build the index if missing or invalid
  faqrag status [flags]           Show index status
  faqrag version                  Show version
  faqrag help                     Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/faqrag/config.yaml, or ./config.yaml if present)
  --debug            Enable debug logging

Ask Flags:
  --server string    Server URL (e.g. http://localhost:8080). Empty answers in-process.
  --output string    Output format: text or json (default: text)

Build Flags:
  --rebuild          Rebuild from the corpus even if a valid index exists

Status Flags:
  --server string    Server URL. Empty inspects the index on disk.
  --output string    Output format: text or json (default: text)

Environment:
  GOOGLE_API_KEY     API key for the chat model (read from .env if present)
  HF_TOKEN           Optional token for the dataset hub

Examples:
  faqrag build
  faqrag ask Kredi kartı başvurusu nasıl yapılır?
  faqrag ask --server http://localhost:8080 --output json "Döviz hesabı açmak için ne gerekiyor?"
  faqrag chat
  faqrag status --output json`)
}
