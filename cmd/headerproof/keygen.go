package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/headerproof/internal/crypto"
)

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create the prover signing key",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.ProverKeyPath()

		if _, err := os.Stat(path); err == nil && !keygenForce {
			key, err := crypto.LoadProverKey(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key already exists at %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "   Address: %s\n", key.Address())
			return nil
		}

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return err
		}

		key, err := crypto.NewProverKey()
		if err != nil {
			return err
		}
		if err := key.Save(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Key written to %s\n", path)
		fmt.Fprintf(cmd.OutOrStdout(), "   Address: %s\n", key.Address())
		return nil
	},
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "replace an existing key")
}
