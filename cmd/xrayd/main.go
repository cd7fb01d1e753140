package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"xrayd/internal/config"
	"xrayd/internal/engine"
	"xrayd/internal/httpapi"
	"xrayd/internal/loader"
	"xrayd/internal/preprocess"
	"xrayd/internal/registry"
	"xrayd/internal/runtime"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cfg := config.Config{}
	var configPath string

	root := &cobra.Command{
		Use:           "xrayd",
		Short:         "Multi-model chest X-ray diagnostic daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", envOr("XRAYD_CONFIG", ""), "Config file (.yaml/.json/.toml); flags override file values")
	root.PersistentFlags().StringVar(&cfg.Addr, "addr", envOr("XRAYD_ADDR", ""), "HTTP listen address, e.g. :8080")
	root.PersistentFlags().StringVar(&cfg.ManifestPath, "manifest", envOr("XRAYD_MANIFEST", "models.yaml"), "Model manifest file")
	root.PersistentFlags().IntVar(&cfg.MemoryBudgetMB, "memory-budget-mb", 0, "Accelerator memory budget in MB for model weights (0=unlimited)")
	root.PersistentFlags().IntVar(&cfg.MemoryMarginMB, "memory-margin-mb", 0, "Reserved memory margin in MB to keep free")
	root.PersistentFlags().IntVar(&cfg.Quorum, "quorum", 0, "Minimum successful models for consensus (0=half the registry, rounded up)")
	root.PersistentFlags().IntVar(&cfg.ModelTimeoutSec, "model-timeout-sec", 0, "Per-model inference timeout in seconds")
	root.PersistentFlags().IntVar(&cfg.AcquireWaitSec, "acquire-wait-sec", 0, "Maximum seconds a request waits for the model slot")
	root.PersistentFlags().IntVar(&cfg.CacheEntries, "cache-entries", 0, "Preprocessed image cache capacity")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", envOr("XRAYD_LOG_LEVEL", ""), "Log level: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&cfg.CORSEnabled, "cors", false, "Enable CORS middleware")
	root.PersistentFlags().String("cors-origins", "", "Comma-separated allowed CORS origins")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP inference server",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveConfig(cmd, cfg, configPath)
			if err != nil {
				return err
			}
			return runServe(resolved)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate config and model manifest, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveConfig(cmd, cfg, configPath)
			if err != nil {
				return err
			}
			reg, err := registry.Load(resolved.ManifestPath)
			if err != nil {
				return err
			}
			fmt.Printf("ok: %d models, labels %v\n", reg.Len(), reg.Labels())
			return nil
		},
	}

	root.AddCommand(serveCmd, checkCmd)
	return root
}

// resolveConfig merges the config file (if any) with flag values. Flags the
// user set explicitly win over file values.
func resolveConfig(cmd *cobra.Command, flags config.Config, configPath string) (config.Config, error) {
	out := flags
	if configPath != "" {
		fileCfg, err := config.Load(configPath)
		if err != nil {
			return out, fmt.Errorf("load config %s: %w", configPath, err)
		}
		merged := fileCfg
		set := func(name string) bool { return cmd.Flags().Changed(name) }
		if set("addr") || merged.Addr == "" && flags.Addr != "" {
			merged.Addr = flags.Addr
		}
		if set("manifest") || merged.ManifestPath == "" {
			merged.ManifestPath = flags.ManifestPath
		}
		if set("memory-budget-mb") {
			merged.MemoryBudgetMB = flags.MemoryBudgetMB
		}
		if set("memory-margin-mb") {
			merged.MemoryMarginMB = flags.MemoryMarginMB
		}
		if set("quorum") {
			merged.Quorum = flags.Quorum
		}
		if set("model-timeout-sec") {
			merged.ModelTimeoutSec = flags.ModelTimeoutSec
		}
		if set("acquire-wait-sec") {
			merged.AcquireWaitSec = flags.AcquireWaitSec
		}
		if set("cache-entries") {
			merged.CacheEntries = flags.CacheEntries
		}
		if set("log-level") || merged.LogLevel == "" && flags.LogLevel != "" {
			merged.LogLevel = flags.LogLevel
		}
		if set("cors") {
			merged.CORSEnabled = flags.CORSEnabled
		}
		out = merged
	}
	if v, _ := cmd.Flags().GetString("cors-origins"); v != "" {
		out.CORSOrigins = splitCSV(v)
	}
	out.Normalize()
	return out, nil
}

func runServe(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)
	httpapi.SetLogger(logger)

	reg, err := registry.Load(cfg.ManifestPath)
	if err != nil {
		return fmt.Errorf("load manifest %s: %w", cfg.ManifestPath, err)
	}
	logger.Info().Int("models", reg.Len()).Strs("labels", reg.Labels()).Msg("registry loaded")

	pre := preprocess.New(cfg.CacheEntries)
	ld := loader.New(runtime.NewONNXRuntime(), cfg.MemoryBudgetMB, cfg.MemoryMarginMB, cfg.AcquireWait())
	eng := engine.New(engine.Config{
		Registry:     reg,
		Preprocessor: pre,
		Loader:       ld,
		Quorum:       cfg.Quorum,
		ModelTimeout: cfg.ModelTimeout(),
		MinImageDim:  cfg.MinImageDim,
		Equalize:     true,
		Publisher:    engine.ZerologPublisher{Log: logger},
	})
	logger.Info().Int("quorum", eng.Quorum()).Int("budget_mb", cfg.MemoryBudgetMB).Msg("engine ready")

	if cfg.CORSEnabled {
		httpapi.SetCORSOptions(true, cfg.CORSOrigins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}

	// Base context lets in-flight predictions observe shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(eng)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("xrayd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
		return err
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "xrayd").Logger()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
