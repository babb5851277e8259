package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kwittgruber/parceltrace/internal/config"
	"github.com/kwittgruber/parceltrace/internal/vault"
)

// newCredentialsCmd creates the `credentials` command group for preparing
// sealed credentials and password verifiers outside of a portal run.
func newCredentialsCmd() *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Seals, unseals and verifies portal credentials",
	}

	credentialsCmd.AddCommand(newSealCmd())
	credentialsCmd.AddCommand(newUnsealCmd())
	credentialsCmd.AddCommand(newHashCmd())

	return credentialsCmd
}

func newVaultFromConfig() (*vault.Vault, error) {
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return vault.New(cfg.Vault.Iterations), nil
}

// newSealCmd encrypts one value under a passphrase. The output goes into
// portal.username_sealed / portal.password_sealed in the config file.
func newSealCmd() *cobra.Command {
	sealCmd := &cobra.Command{
		Use:   "seal <value>",
		Short: "Encrypts a credential value for the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase, _ := cmd.Flags().GetString("passphrase")
			if passphrase == "" {
				return errors.New("--passphrase is required")
			}
			v, err := newVaultFromConfig()
			if err != nil {
				return err
			}
			sealed, err := v.Seal(passphrase, args[0])
			if err != nil {
				return err
			}
			fmt.Println(sealed)
			return nil
		},
	}
	sealCmd.Flags().String("passphrase", "", "Passphrase to derive the encryption key from.")
	return sealCmd
}

// newUnsealCmd decrypts a sealed value, mainly to verify a seal round-trips.
func newUnsealCmd() *cobra.Command {
	unsealCmd := &cobra.Command{
		Use:   "unseal <sealed-value>",
		Short: "Decrypts a sealed credential value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase, _ := cmd.Flags().GetString("passphrase")
			if passphrase == "" {
				return errors.New("--passphrase is required")
			}
			v, err := newVaultFromConfig()
			if err != nil {
				return err
			}
			plaintext, err := v.Open(passphrase, args[0])
			if err != nil {
				return err
			}
			fmt.Println(plaintext)
			return nil
		},
	}
	unsealCmd.Flags().String("passphrase", "", "Passphrase the value was sealed with.")
	return unsealCmd
}

// newHashCmd derives a salted verifier for a password.
func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <password>",
		Short: "Derives a salted password verifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newVaultFromConfig()
			if err != nil {
				return err
			}
			verifier, err := v.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Println(verifier)
			return nil
		},
	}
}
