package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/headerproof/internal/grpc"
	"github.com/yourusername/headerproof/internal/receipt"
)

var verifyFlags struct {
	prover string
	remote string
}

var verifyCmd = &cobra.Command{
	Use:   "verify <receipt-file>",
	Short: "Check a receipt against the configured rule set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var r receipt.Receipt
		if err := r.UnmarshalBinary(data); err != nil {
			return err
		}

		if verifyFlags.remote != "" {
			ctx, cancel := signalContext()
			defer cancel()

			client, err := grpc.Dial(ctx, verifyFlags.remote)
			if err != nil {
				return err
			}
			defer client.Close()

			ok, err := client.Verify(ctx, &r)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("receipt rejected by %s", verifyFlags.remote)
			}

			// the remote accepted the image id, the prover identity is checked here
			if verifyFlags.prover != "" {
				if err := receipt.VerifyFrom(&r, r.ImageID, verifyFlags.prover); err != nil {
					return err
				}
			}
		} else {
			imageID := receipt.ImageID(cfg.BaselineTime)
			if verifyFlags.prover != "" {
				err = receipt.VerifyFrom(&r, imageID, verifyFlags.prover)
			} else {
				err = receipt.Verify(&r, imageID)
			}
			if err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "✅ Receipt valid\n")
		fmt.Fprintf(w, "   Headers:    %d\n", r.Count)
		fmt.Fprintf(w, "   Commitment: %s\n", r.JournalString())
		fmt.Fprintf(w, "   Prover:     %s\n", r.ProverAddress())
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFlags.prover, "prover", "", "require the receipt to be sealed by this address")
	verifyCmd.Flags().StringVar(&verifyFlags.remote, "remote", "", "verify on a remote gRPC prover")
}
