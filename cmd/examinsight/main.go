package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eduquiz/examinsight/internal/handler"
	appI18n "github.com/eduquiz/examinsight/internal/i18n"
	"github.com/eduquiz/examinsight/internal/model"
	"github.com/eduquiz/examinsight/internal/narrative"
	"github.com/eduquiz/examinsight/internal/provider"
	"github.com/eduquiz/examinsight/internal/store"
	"github.com/eduquiz/examinsight/internal/worker"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examinsight",
		Short: "Exam attempt analysis service with LLM study suggestions",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examinsight --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analysis server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "examinsight.db", "SQLite database path")
	f.String("provider-url", "http://localhost:3000", "Exam service API base URL")
	f.Duration("provider-timeout", 15*time.Second, "Exam service request timeout")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Float64("input-cost", 0.0025, "LLM input token price per 1000 tokens")
	f.Float64("output-cost", 0.0075, "LLM output token price per 1000 tokens")
	f.Float64("strength-threshold", 80, "Correct percentage at or above which a topic is a strength")
	f.Float64("weakness-threshold", 50, "Correct percentage below which a topic is a weakness")
	f.Int("workers", 2, "Background narrative workers")
	f.Int("queue-size", 64, "Background job buffer size")
	f.Int("max-attempts", 3, "Narrative generation attempts per job")
	f.Duration("retry-delay", 5*time.Second, "Delay between narrative retries")
	f.StringP("lang", "l", "en", "Default response language (en, vi)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored analyses as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "examinsight.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examinsight")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examinsight")
	v.AddConfigPath("/etc/examinsight")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	narrativeClient, err := narrative.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		narrative.CostRates{
			InputPer1K:  v.GetFloat64("input-cost"),
			OutputPer1K: v.GetFloat64("output-cost"),
		},
	)
	if err != nil {
		return fmt.Errorf("create narrative client: %w", err)
	}
	if err := narrativeClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	providerClient := provider.New(
		v.GetString("provider-url"),
		v.GetDuration("provider-timeout"),
	)

	thresholds := model.Thresholds{
		Strength: v.GetFloat64("strength-threshold"),
		Weakness: v.GetFloat64("weakness-threshold"),
	}

	pool := worker.NewPool(
		v.GetInt("workers"),
		v.GetInt("queue-size"),
		v.GetInt("max-attempts"),
		v.GetDuration("retry-delay"),
		slog.Default(),
	)
	defer pool.Close()

	h := handler.New(db, providerClient, narrativeClient, pool, thresholds)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"provider_url", v.GetString("provider-url"),
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"strength_threshold", thresholds.Strength,
		"weakness_threshold", thresholds.Weakness,
		"workers", v.GetInt("workers"),
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAll()
	if err != nil {
		return fmt.Errorf("export analyses: %w", err)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
