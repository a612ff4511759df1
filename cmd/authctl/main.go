package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/config"
	"github.com/goliatone/go-auth-sync/identity/httpclient"
	"github.com/goliatone/go-auth-sync/store/file"
	"github.com/goliatone/go-auth-sync/store/memory"
	"github.com/goliatone/go-auth-sync/store/sqlstore"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

// app bundles everything a command needs. It is built once per invocation
// by the root command.
type app struct {
	cfg        config.Config
	logger     authsync.Logger
	store      authsync.CredentialStore
	client     *httpclient.Client
	controller *authsync.Controller
	closers    []func() error
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Log in, register and inspect the local auth session",
	Long: `authctl keeps a local session in sync with an identity service.

Example usage:
  authctl register --email jane@example.com
  authctl login --email jane@example.com
  authctl status
  authctl whoami
  authctl logout`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		return current.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		color.Red("error: %s", authsync.ServiceMessage(err))
		if current != nil {
			_ = current.Close()
		}
		os.Exit(1)
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateClient(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}

	var logger authsync.Logger = authsync.NopLogger{}
	if verbose {
		logger = authsync.DefaultLogger()
	}

	a := &app{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	a.client = httpclient.New(cfg.IdentityServiceURL, store,
		httpclient.WithCollection(cfg.Collection),
		httpclient.WithTimeout(cfg.RequestTimeout),
		httpclient.WithLogger(logger),
	)

	a.controller = authsync.NewController(
		authsync.NewStoreAdapter(store),
		a.client,
		authsync.WithLogger(logger),
	)
	a.closers = append(a.closers, a.controller.Close)

	return a, nil
}

func (a *app) openStore(ctx context.Context) (authsync.CredentialStore, error) {
	switch a.cfg.StoreDriver {
	case config.StoreMemory:
		return memory.New(memory.WithLogger(a.logger)), nil
	case config.StoreSQLite:
		db, err := sqlstore.OpenSQLite(a.cfg.StorePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		store, err := sqlstore.New(ctx, db, sqlstore.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := file.New(a.cfg.StorePath, file.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// Close releases the controller and any open database, in reverse order
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
