package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/internal/config"
	"github.com/kwittgruber/parceltrace/internal/observability"
	"github.com/kwittgruber/parceltrace/internal/progress"
	"github.com/kwittgruber/parceltrace/internal/store"
	"github.com/kwittgruber/parceltrace/internal/vault"
	"github.com/kwittgruber/parceltrace/pkg/browser"
	"github.com/kwittgruber/parceltrace/pkg/browser/cdp"
	"github.com/kwittgruber/parceltrace/pkg/portal"
)

// newLoadCmd creates and configures the `load` command, the full
// login-and-extract workflow against the shipment overview.
func newLoadCmd() *cobra.Command {
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Logs into the portal and extracts the shipment overview",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			creds, err := resolveCredentials(cfg)
			if err != nil {
				return err
			}

			runID := uuid.New().String()
			logger.Info("Starting shipment load", zap.String("runID", runID))

			components, err := initializePortalComponents(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown(ctx)

			ok, err := components.Engine.Login(ctx, creds)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if !ok {
				return errors.New("portal rejected the credentials")
			}

			shipments, err := components.Engine.LoadShipments(ctx)
			if err != nil {
				return fmt.Errorf("shipment extraction failed: %w", err)
			}
			logger.Info("Shipment load completed",
				zap.String("runID", runID), zap.Int("shipments", len(shipments)))

			if cfg.Database.URL != "" {
				if err := persistShipments(ctx, cfg.Database.URL, shipments, logger); err != nil {
					return err
				}
			}

			return printShipments(shipments, viper.GetBool("json"))
		},
	}

	loadCmd.Flags().StringP("username", "u", "", "Portal username. (Overrides sealed credentials)")
	loadCmd.Flags().StringP("password", "p", "", "Portal password. (Overrides sealed credentials)")
	loadCmd.Flags().String("passphrase", "", "Passphrase for sealed credentials from the config file.")
	loadCmd.Flags().Bool("json", false, "Print the shipment list as JSON instead of a table.")

	return loadCmd
}

// portalComponents holds the initialized services of one portal run.
type portalComponents struct {
	BrowserManager *browser.Manager
	Hub            *progress.Hub
	Engine         *portal.Engine

	renderDone chan struct{}
}

// Shutdown gracefully closes all components.
func (pc *portalComponents) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if pc.Engine != nil {
		pc.Engine.Quit(shutdownCtx)
	}
	if pc.BrowserManager != nil {
		if err := pc.BrowserManager.Shutdown(shutdownCtx); err != nil {
			observability.GetLogger().Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	if pc.Hub != nil {
		pc.Hub.Close()
		<-pc.renderDone
	}
}

// initializePortalComponents handles dependency injection for the portal
// workflows: browser process, progress fan-out and the engine itself.
func initializePortalComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*portalComponents, error) {
	manager, err := browser.NewManager(ctx, logger, browser.Options{
		Headless:        cfg.Browser.Headless,
		IgnoreTLSErrors: cfg.Browser.IgnoreTLSErrors,
		UserAgent:       cfg.Browser.UserAgent,
		Args:            cfg.Browser.Args,
	}, cdp.NewPage)
	if err != nil {
		return nil, err
	}

	hub := progress.NewHub()
	events, unsubscribe := hub.Subscribe(64)
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		defer unsubscribe()
		for ev := range events {
			fmt.Fprintf(os.Stderr, "[%3d%%] %-12s %s\n", ev.Progress, ev.Step, ev.Message)
		}
	}()

	engine := portal.NewEngine(manager, portal.Config{
		AuthURL:         cfg.Portal.AuthURL,
		LoginHost:       cfg.Portal.LoginHost,
		OverviewURL:     cfg.Portal.OverviewURL,
		TrackingURL:     cfg.Portal.TrackingURL,
		ElementTimeout:  cfg.Portal.ElementTimeout,
		RedirectTimeout: cfg.Portal.RedirectTimeout,
		SettleShort:     cfg.Portal.SettleShort,
		SettlePage:      cfg.Portal.SettlePage,
		SettleResults:   cfg.Portal.SettleResults,
		OverdueAfter:    cfg.Portal.OverdueAfter,
	}, logger, portal.WithProgress(hub.ReporterFunc()))

	return &portalComponents{
		BrowserManager: manager,
		Hub:            hub,
		Engine:         engine,
		renderDone:     renderDone,
	}, nil
}

// resolveCredentials prefers explicit flags and falls back to the sealed
// credentials in the config file, which need the passphrase flag.
func resolveCredentials(cfg *config.Config) (portal.Credentials, error) {
	username := viper.GetString("username")
	password := viper.GetString("password")
	if username != "" && password != "" {
		return portal.Credentials{Username: username, Password: password}, nil
	}

	if cfg.Portal.UsernameSealed == "" || cfg.Portal.PasswordSealed == "" {
		return portal.Credentials{}, errors.New("no credentials: pass --username/--password or seal them into the config")
	}
	passphrase := viper.GetString("passphrase")
	if passphrase == "" {
		return portal.Credentials{}, errors.New("sealed credentials require --passphrase")
	}

	v := vault.New(cfg.Vault.Iterations)
	user, err := v.Open(passphrase, cfg.Portal.UsernameSealed)
	if err != nil {
		return portal.Credentials{}, fmt.Errorf("unsealing username: %w", err)
	}
	pass, err := v.Open(passphrase, cfg.Portal.PasswordSealed)
	if err != nil {
		return portal.Credentials{}, fmt.Errorf("unsealing password: %w", err)
	}
	return portal.Credentials{Username: user, Password: pass}, nil
}

// persistShipments upserts the extracted rows into PostgreSQL.
func persistShipments(ctx context.Context, url string, shipments []portal.ShipmentSummary, logger *zap.Logger) error {
	pool, err := store.Connect(ctx, url, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	return st.UpsertShipments(ctx, shipments)
}

// printShipments writes the result to stdout, as JSON or a plain table.
func printShipments(shipments []portal.ShipmentSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(shipments)
	}

	fmt.Printf("%-16s %-24s %-20s %-12s %s\n", "TRACKING", "CUSTOMER", "STATUS", "UPDATED", "OVERDUE")
	for _, sh := range shipments {
		updated := "-"
		if sh.LastUpdate != nil {
			updated = sh.LastUpdate.Format("02.01.2006")
		}
		overdue := ""
		if sh.IsOverdue {
			overdue = "yes"
		}
		fmt.Printf("%-16s %-24s %-20s %-12s %s\n",
			sh.TrackingNumber, sh.CustomerName, sh.Status, updated, overdue)
	}
	fmt.Printf("\n%d shipments\n", len(shipments))
	return nil
}
