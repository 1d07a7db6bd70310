package main

import (
	"context"
	"fmt"
	"os"

	"github.com/0xataru/dfox/internal/app"
	"github.com/0xataru/dfox/internal/config"
	"github.com/0xataru/dfox/internal/connection_history"
	"github.com/0xataru/dfox/internal/db/client"
	"github.com/0xataru/dfox/internal/db/connection"
	"github.com/0xataru/dfox/internal/db/discovery"
	"github.com/0xataru/dfox/internal/debuglog"
	"github.com/0xataru/dfox/internal/export"
	"github.com/0xataru/dfox/internal/history"
	"github.com/0xataru/dfox/internal/models"
	"github.com/0xataru/dfox/internal/runner"
	"github.com/0xataru/dfox/internal/ui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"
)

type options struct {
	configPath string
	debugLog   string
	verbose    bool
	noHistory  bool
}

func main() {
	os.Exit(submain())
}

func submain() int {
	logger := pslog.NewWithOptions(os.Stderr, pslog.Options{Mode: pslog.ModeConsole})

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Error("dfox failed", "error", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:           "dfox",
		Short:         "Terminal client for PostgreSQL, MySQL and SQLite",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	root.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default searches the user config dir)")
	root.Flags().StringVar(&opts.debugLog, "debug-log", "", "debug log file (overrides debug.log_file)")
	root.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug level events")
	root.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not read or record query history")
	return root
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.debugLog != "" {
		cfg.Debug.LogFile = opts.debugLog
	}
	if opts.verbose {
		cfg.Debug.Verbose = true
	}
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}

	debug, err := debuglog.Open(cfg.Debug.LogFile, cfg.Debug.Verbose, cfg.Debug.Buffer)
	if err != nil {
		return err
	}
	defer func() { _ = debug.Close() }()
	logger := debug.Logger()
	ctx = pslog.ContextWithLogger(ctx, logger)
	logger.Info("dfox starting", "config", opts.configPath, "log_file", cfg.Debug.LogFile)

	modelOpts := []app.Option{
		app.WithDebugLog(debug),
		app.WithLogger(logger),
		app.WithTheme(theme.GetTheme(cfg.UI.Theme)),
		app.WithExport(cfg.Export.Dir, format),
		app.WithSettings(app.Settings{
			PageSize:       cfg.General.PageSize,
			VisibleColumns: cfg.General.VisibleColumns,
			CopyDelimiter:  cfg.General.CopyDelimiter,
		}),
	}

	if cfg.History.Enabled && !opts.noHistory {
		store, err := history.Open(cfg.History.Path, cfg.History.MaxEntries)
		if err != nil {
			logger.Warn("query history disabled", "path", cfg.History.Path, "error", err)
		} else {
			defer func() { _ = store.Close() }()
			modelOpts = append(modelOpts, app.WithHistory(store, cfg.History.SaveFailedQueries))
		}
	}

	var connections *connection_history.Manager
	if cfg.Connections.Remember {
		connections = openConnectionHistory(cfg, logger)
		if connections != nil {
			modelOpts = append(modelOpts, app.WithConnectionHistory(connections))
		}
	}
	modelOpts = append(modelOpts, app.WithPrefill(buildPrefill(connections, discovery.Environment)))

	r := runner.New(
		runner.WithWorkers(cfg.Runner.Workers),
		runner.WithBuffer(cfg.Runner.Buffer),
		runner.WithLogger(logger),
	)
	defer r.Close()
	modelOpts = append(modelOpts, app.WithRunner(r))

	session := connection.NewSession(
		connection.WithLogger(logger),
		connection.WithDialer(func(ctx context.Context, engine models.EngineKind, params models.ConnectionParams) (client.Client, error) {
			return client.Connect(ctx, engine, params,
				client.WithRowLimit(cfg.General.RowLimit),
				client.WithConnectTimeout(cfg.General.ConnectTimeout),
				client.WithLogger(logger),
			)
		}),
	)
	defer session.Disconnect()

	programOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.UI.MouseEnabled {
		programOpts = append(programOpts, tea.WithMouseCellMotion())
	}

	p := tea.NewProgram(app.New(session, modelOpts...), programOpts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	logger.Info("dfox stopped")
	return nil
}

// openConnectionHistory returns nil when the history file cannot be used
func openConnectionHistory(cfg *config.Config, logger pslog.Logger) *connection_history.Manager {
	dir, err := config.GetConfigPath()
	if err != nil {
		logger.Warn("connection history disabled", "error", err)
		return nil
	}

	opts := []connection_history.Option{connection_history.WithLogger(logger)}
	if cfg.Connections.SavePasswords {
		secrets, err := connection_history.NewPasswordStore(dir)
		if err != nil {
			logger.Warn("password storage disabled", "error", err)
		} else {
			if secrets.IsUsingFallback() {
				logger.Info("storing passwords in the encrypted file keyring", "dir", dir)
			}
			opts = append(opts, connection_history.WithSecretStore(secrets))
		}
	}

	mgr, err := connection_history.NewManager(dir, opts...)
	if err != nil {
		logger.Warn("connection history disabled", "error", err)
		return nil
	}
	return mgr
}

// buildPrefill picks the form defaults per engine: the last remembered
// connection first, then the environment, then plain defaults.
func buildPrefill(mgr *connection_history.Manager, env func(models.EngineKind) (models.ConnectionParams, bool)) map[models.EngineKind]models.ConnectionParams {
	prefill := make(map[models.EngineKind]models.ConnectionParams, len(models.Engines()))
	for _, engine := range models.Engines() {
		if mgr != nil {
			if entry, ok := mgr.Last(engine); ok {
				prefill[engine] = mgr.Params(entry)
				continue
			}
		}
		params, _ := env(engine)
		prefill[engine] = params
	}
	return prefill
}
