package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/internal/config"
	"github.com/kwittgruber/parceltrace/internal/observability"
	"github.com/kwittgruber/parceltrace/pkg/portal"
)

// newTrackCmd creates and configures the `track` command, the single
// shipment lookup on the public tracking view.
func newTrackCmd() *cobra.Command {
	trackCmd := &cobra.Command{
		Use:   "track <tracking-number>",
		Short: "Looks up one shipment and its event history",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			trackingNumber := args[0]
			if !portal.IsValidTrackingNumber(trackingNumber) {
				return fmt.Errorf("%q is not a plausible tracking number", trackingNumber)
			}

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			creds, err := resolveCredentials(cfg)
			if err != nil {
				return err
			}

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

			result, err := components.Engine.TrackShipment(ctx, trackingNumber)
			if err != nil {
				return fmt.Errorf("tracking failed: %w", err)
			}
			logger.Info("Tracking completed",
				zap.String("trackingNumber", trackingNumber), zap.Int("events", len(result.Events)))

			return printTrackingResult(result, viper.GetBool("json"))
		},
	}

	trackCmd.Flags().StringP("username", "u", "", "Portal username. (Overrides sealed credentials)")
	trackCmd.Flags().StringP("password", "p", "", "Portal password. (Overrides sealed credentials)")
	trackCmd.Flags().String("passphrase", "", "Passphrase for sealed credentials from the config file.")
	trackCmd.Flags().Bool("json", false, "Print the tracking result as JSON.")

	return trackCmd
}

func printTrackingResult(result *portal.TrackingResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("Shipment %s\n", result.TrackingNumber)
	if result.Status != "" {
		fmt.Printf("  Status:   %s\n", result.Status)
	}
	if result.Location != "" {
		fmt.Printf("  Location: %s\n", result.Location)
	}
	if result.LastUpdate != nil {
		fmt.Printf("  Updated:  %s\n", result.LastUpdate.Format("02.01.2006"))
	}
	if len(result.Events) > 0 {
		fmt.Println("\nHistory:")
		for _, ev := range result.Events {
			line := fmt.Sprintf("  %s %s  %s", ev.Date, ev.Time, ev.Description)
			if ev.Location != "" {
				line += "  (" + ev.Location + ")"
			}
			fmt.Println(line)
		}
	}
	return nil
}
