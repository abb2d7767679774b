package cli

import (
	"github.com/wakeguard/wakeguard/internal/accounts"
	"github.com/wakeguard/wakeguard/internal/assist"
	"github.com/wakeguard/wakeguard/internal/auth"
	"github.com/wakeguard/wakeguard/internal/config"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/scheduler"
	"github.com/wakeguard/wakeguard/internal/statestore"
	"github.com/wakeguard/wakeguard/internal/trigger"
	"github.com/wakeguard/wakeguard/internal/wakeup"
)

// App bundles the wired components behind every command. Collaborators are
// built per invocation; nothing is cached at package level.
type App struct {
	Config       *config.Config
	Loader       *config.Loader
	Logger       *logging.Logger
	State        *statestore.Store
	Directory    *accounts.FileDirectory
	Resolver     *accounts.Resolver
	Creds        *auth.Provider
	Assist       *assist.Client
	Executor     *trigger.Executor
	Orchestrator *wakeup.Orchestrator
	Source       *scheduler.AssistSource
}

// buildApp wires the application from configuration and global flags.
func buildApp() (*App, error) {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if globalFlags.DataDir != "" {
		cfg.Paths.DataDir = globalFlags.DataDir
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if globalFlags.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.WithLevel(level))

	state, err := statestore.NewStore(cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}

	directory := accounts.NewFileDirectory(cfg.Paths.AuthDir)
	resolver := accounts.NewResolver(directory)

	var authOpts []auth.Option
	if cfg.API.TokenURL != "" {
		authOpts = append(authOpts, auth.WithTokenURL(cfg.API.TokenURL))
	}
	creds := auth.NewProvider(cfg.Paths.AuthDir, logger, authOpts...)

	var assistOpts []assist.ClientOption
	if cfg.API.BaseURL != "" {
		assistOpts = append(assistOpts, assist.WithBaseURL(cfg.API.BaseURL))
	}
	assistClient := assist.NewClient(logger, assistOpts...)

	executor := trigger.NewExecutor(credentialSource{creds}, assistClient, state, logger)
	orchestrator := wakeup.NewOrchestrator(state, resolver, executor, logger)
	source := scheduler.NewAssistSource(resolver, creds, assistClient)

	return &App{
		Config:       cfg,
		Loader:       loader,
		Logger:       logger,
		State:        state,
		Directory:    directory,
		Resolver:     resolver,
		Creds:        creds,
		Assist:       assistClient,
		Executor:     executor,
		Orchestrator: orchestrator,
		Source:       source,
	}, nil
}

// credentialSource adapts the auth provider to the executor's interface.
type credentialSource struct {
	provider *auth.Provider
}

func (s credentialSource) Handle(email string) (trigger.Credential, error) {
	handle, err := s.provider.Handle(email)
	if err != nil {
		return nil, err
	}
	return handle, nil
}
