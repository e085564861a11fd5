package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"penny/internal/adapter/llm"
	"penny/internal/adapter/storage"
	"penny/internal/adapter/tool"
	"penny/internal/adapter/tui"
	"penny/internal/domain"
	"penny/internal/infra/config"
	"penny/internal/infra/logger"
	"penny/internal/infra/tracer"
	"penny/internal/usecase"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	var err error
	switch {
	case len(os.Args) < 2 || os.Args[1][0] == '-':
		err = runChat(os.Args[1:])
	case os.Args[1] == "ask":
		err = runAsk(os.Args[2:])
	case os.Args[1] == "init-db":
		err = runInitDB(os.Args[2:])
	case os.Args[1] == "encrypt":
		err = runEncrypt(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'penny --help' for usage.\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "penny: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`penny - conversational budget analysis agent

USAGE:
    penny [COMMAND] [FLAGS]

COMMANDS:
    ask QUESTION   Answer one question and exit
    init-db        Create and seed the budget database
    encrypt VALUE  Encrypt a secret for use in config.yaml
                   (requires PENNY_CONFIG_KEY)

    (no command)   Interactive chat

FLAGS:
    -h, --help       Show this help message
    --config PATH    Config file path (default: ./config.yaml)
    --db PATH        Budget database path (overrides config)
    --provider NAME  Reasoning provider to use (overrides config)
    --show-queries   With 'ask': print the executed SQL after the answer

CONFIGURATION:
    Config file: ./config.yaml (optional)
    Environment: PENNY_* variables override config;
                 ANTHROPIC_API_KEY is picked up automatically.

EXAMPLES:
    penny init-db
    penny ask "How much did we spend on groceries this month?"
    penny ask --show-queries "Which categories are over budget?"
    penny`)
}

// commonFlags registers the flags shared by every command on fs and returns
// pointers to their values.
func commonFlags(fs *flag.FlagSet) (configPath, dbPath, provider *string) {
	configPath = fs.String("config", "config.yaml", "config file path")
	dbPath = fs.String("db", "", "budget database path (overrides config)")
	provider = fs.String("provider", "", "reasoning provider (overrides config)")
	return
}

func loadConfig(configPath, dbPath, provider string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if cfg == nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if provider != "" {
		cfg.LLM.DefaultProvider = provider
	}
	return cfg, err
}

// buildAgent wires storage, tools, and the reasoning provider into an
// agent. The returned cleanup closes the database.
func buildAgent(cfg *config.Config, log *slog.Logger) (*usecase.Agent, string, func(), error) {
	store, err := storage.Open(cfg.Storage, log)
	if err != nil {
		return nil, "", nil, err
	}

	registry, err := tool.NewBudgetRegistry(store, log)
	if err != nil {
		store.Close()
		return nil, "", nil, err
	}

	provider, providerCfg, err := buildProvider(cfg, log)
	if err != nil {
		store.Close()
		return nil, "", nil, err
	}

	var guard *usecase.ContextGuard
	if cfg.Agent.ContextGuard.Enabled {
		guard = usecase.NewContextGuard(cfg.Agent.ContextGuard, llm.NewTokenCounter(), log)
	}

	agent := usecase.NewAgent(usecase.AgentDeps{
		LLM:   provider,
		Tools: registry,
		ContextBuilder: usecase.NewContextBuilder(
			cfg.Agent.SystemPrompt, providerCfg.Model,
			providerCfg.MaxTokens, providerCfg.Temperature,
		),
		ContextGuard: guard,
		Logger:       log,
		MaxSteps:     cfg.Agent.MaxSteps,
	})
	return agent, providerCfg.Model, func() { store.Close() }, nil
}

// buildProvider constructs every configured provider, registers them, and
// returns the default one wrapped in the configured decorators.
func buildProvider(cfg *config.Config, log *slog.Logger) (domain.LLMProvider, config.ProviderConfig, error) {
	registry := llm.NewRegistry()
	byName := make(map[string]config.ProviderConfig)

	for _, pc := range cfg.LLM.Providers {
		var (
			p   domain.LLMProvider
			err error
		)
		switch pc.Type {
		case "anthropic":
			p = llm.NewAnthropicProvider(pc, log)
		case "bedrock":
			p, err = llm.NewBedrockProvider(pc, log)
		default:
			err = fmt.Errorf("unknown provider type %q", pc.Type)
		}
		if err != nil {
			return nil, config.ProviderConfig{}, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if err := registry.Register(p); err != nil {
			return nil, config.ProviderConfig{}, err
		}
		byName[pc.Name] = pc
	}

	provider, err := registry.Get(cfg.LLM.DefaultProvider)
	if err != nil {
		return nil, config.ProviderConfig{}, err
	}

	if cfg.LLM.RateLimit.Enabled {
		provider = llm.NewRateLimitedProvider(provider, cfg.LLM.RateLimit, log)
	}
	if cfg.LLM.CircuitBreaker.Enabled {
		provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
	}
	return provider, byName[cfg.LLM.DefaultProvider], nil
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("penny", flag.ExitOnError)
	configPath, dbPath, provider := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *dbPath, *provider)
	if err != nil {
		return err
	}
	// The chat UI owns the terminal; logs to stderr would corrupt it.
	if cfg.Logger.Output == "stderr" || cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "discard"
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	shutdown, err := tracer.Setup(context.Background(), cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	agent, model, cleanup, err := buildAgent(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	conv := usecase.NewConversation()
	return tui.Run(tui.Deps{
		Ask: func(ctx context.Context, question string) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.Agent.Timeout)
			defer cancel()
			return agent.Ask(ctx, conv, question)
		},
		Queries: conv.ExecutedQueries,
		OnClear: conv.Reset,
		Logger:  log,
		Model:   model,
	})
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath, dbPath, provider := commonFlags(fs)
	showQueries := fs.Bool("show-queries", false, "print executed SQL after the answer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: penny ask [flags] QUESTION")
	}
	question := fs.Arg(0)

	cfg, err := loadConfig(*configPath, *dbPath, *provider)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	shutdown, err := tracer.Setup(context.Background(), cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	agent, _, cleanup, err := buildAgent(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Agent.Timeout)
	defer cancel()

	conv := usecase.NewConversation()
	answer, err := agent.Ask(ctx, conv, question)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	if *showQueries {
		queries := conv.ExecutedQueries()
		if len(queries) > 0 {
			fmt.Println("\nExecuted queries:")
			for i, q := range queries {
				fmt.Printf("  %d. %s\n", i+1, q)
			}
		}
	}
	return nil
}

func runInitDB(args []string) error {
	fs := flag.NewFlagSet("init-db", flag.ExitOnError)
	configPath, dbPath, _ := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *dbPath, "")
	if err != nil {
		// Seeding only needs the storage section; a missing API key must
		// not block it.
		var ve *config.ValidationError
		if !errors.As(err, &ve) || cfg == nil {
			return err
		}
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := storage.Seed(context.Background(), cfg.Storage, log); err != nil {
		return err
	}
	fmt.Printf("Budget database ready at %s\n", cfg.Storage.Path)
	return nil
}

func runEncrypt(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: penny encrypt VALUE")
	}
	passphrase := os.Getenv("PENNY_CONFIG_KEY")
	if passphrase == "" {
		return fmt.Errorf("set PENNY_CONFIG_KEY to the encryption passphrase first")
	}
	encrypted, err := config.EncryptValue(args[0], passphrase)
	if err != nil {
		return err
	}
	fmt.Printf("enc:%s\n", encrypted)
	return nil
}
