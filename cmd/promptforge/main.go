// PromptForge — local prompt enhancement service
// Task 1.1: project scaffolding — entry point
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/svidal/promptforge/internal/api"
	"github.com/svidal/promptforge/internal/domain/audit"
	"github.com/svidal/promptforge/internal/domain/enhance"
	"github.com/svidal/promptforge/internal/domain/history"
	"github.com/svidal/promptforge/internal/domain/template"
	"github.com/svidal/promptforge/internal/infra/config"
	"github.com/svidal/promptforge/internal/infra/eventbus"
	"github.com/svidal/promptforge/internal/infra/llm"
	"github.com/svidal/promptforge/internal/infra/logger"
	"github.com/svidal/promptforge/internal/infra/sqlite"
	"github.com/svidal/promptforge/internal/server"
	"github.com/svidal/promptforge/internal/version"
	pkgauth "github.com/svidal/promptforge/pkg/auth"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("promptforge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	if *showHelp {
		printHelp(out)
		return 0
	}

	switch fs.Arg(0) {
	case "serve":
		return serve(out)
	case "migrate":
		return migrate(out)
	case "token":
		return token(fs.Args()[1:], out)
	case "":
		printHelp(out)
		return 0
	default:
		fmt.Fprintf(out, "unknown command: %s\n", fs.Arg(0)) //nolint:errcheck
		return 2
	}
}

// serve wires the whole service and blocks until SIGINT/SIGTERM.
func serve(out io.Writer) int {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv)

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("open database")
		return 1
	}
	if err := sqlite.MigrateUp(db); err != nil {
		log.Error().Err(err).Msg("run migrations")
		return 1
	}

	bus := eventbus.New()
	provider := llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.Model)
	store := llm.NewFileModelStore(cfg.AssetsDir, cfg.DataDir, cfg.ModelFile)
	engine := llm.NewEngine(provider, store, bus, log)

	templateSvc := template.NewService(db)
	if seeded, seedErr := templateSvc.Seed(context.Background()); seedErr != nil {
		log.Error().Err(seedErr).Msg("seed templates")
		return 1
	} else if seeded > 0 {
		log.Info().Int("count", seeded).Msg("seeded built-in templates")
	}

	historySvc := history.NewService(db, bus)
	auditSvc := audit.NewService(db)
	orchestrator := enhance.NewOrchestrator(engine, templateSvc, log)

	// Warm up in the background: the API is reachable immediately and
	// reports Starting/Loading until the model is resident.
	go func() {
		if startErr := orchestrator.Start(context.Background()); startErr != nil {
			log.Warn().Err(startErr).Msg("engine warm-up failed; will retry on first request")
		}
	}()

	srvConfig := server.DefaultConfig()
	srvConfig.Host = cfg.Host
	srvConfig.Port = cfg.Port

	srv := server.NewServer(api.Deps{
		DB:           db,
		Log:          log,
		Bus:          bus,
		Engine:       engine,
		Orchestrator: orchestrator,
		Templates:    templateSvc,
		History:      historySvc,
		Audit:        auditSvc,
		JWTSecret:    []byte(cfg.JWTSecret),
	}, srvConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case srvErr := <-errCh:
		log.Error().Err(srvErr).Msg("server stopped")
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Free the model before closing the server so the runtime does not keep
	// ~1.5 GB resident after exit.
	if releaseErr := engine.Release(shutdownCtx); releaseErr != nil {
		log.Warn().Err(releaseErr).Msg("engine release failed")
	}
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("shutdown failed")
		return 1
	}
	return 0
}

// migrate applies pending schema migrations and exits.
func migrate(out io.Writer) int {
	cfg := config.Load()

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(out, "open database: %v\n", err) //nolint:errcheck
		return 1
	}
	defer db.Close() //nolint:errcheck

	if err := sqlite.MigrateUp(db); err != nil {
		fmt.Fprintf(out, "migrate: %v\n", err) //nolint:errcheck
		return 1
	}

	ver, err := sqlite.MigrationVersion(db)
	if err != nil {
		fmt.Fprintf(out, "read migration version: %v\n", err) //nolint:errcheck
		return 1
	}
	fmt.Fprintf(out, "database at migration version %d\n", ver) //nolint:errcheck
	return 0
}

// token mints a JWT for a client when auth is enabled.
func token(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	actor := fs.String("actor", "cli", "Client name embedded in the token")
	hours := fs.Int("expiry", 24, "Token lifetime in hours")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		fmt.Fprintln(out, "PF_JWT_SECRET is not set; the API runs without auth") //nolint:errcheck
		return 1
	}

	signed, err := pkgauth.GenerateJWT([]byte(cfg.JWTSecret), *actor, time.Duration(*hours)*time.Hour)
	if err != nil {
		fmt.Fprintf(out, "generate token: %v\n", err) //nolint:errcheck
		return 1
	}
	fmt.Fprintln(out, signed) //nolint:errcheck
	return 0
}

func printHelp(out io.Writer) {
	helpText := `PromptForge — local prompt enhancement service

Usage:
  promptforge <command> [options]

Commands:
  serve        Start the HTTP service
  migrate      Apply database migrations and exit
  token        Mint a client JWT (requires PF_JWT_SECRET)

Options:
  --version    Show version information
  --help       Show this help message

Examples:
  promptforge serve
  promptforge migrate
  promptforge token --actor mobile-app --expiry 72`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
