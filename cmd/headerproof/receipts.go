package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/headerproof/internal/storage"
)

var receiptsFlags struct {
	seq    uint64
	latest bool
	out    string
}

var receiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "List the stored receipt log or export one receipt",
	Example: `  headerproof receipts
  headerproof receipts --latest --out receipt.bin
  headerproof receipts --seq 4`,
	Args: cobra.NoArgs,
	RunE: runReceipts,
}

func init() {
	flags := receiptsCmd.Flags()
	flags.Uint64Var(&receiptsFlags.seq, "seq", 0, "show the receipt with this sequence number")
	flags.BoolVar(&receiptsFlags.latest, "latest", false, "show the most recent receipt")
	flags.StringVar(&receiptsFlags.out, "out", "", "write the selected receipt to this file")
}

func runReceipts(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	w := cmd.OutOrStdout()

	var record *storage.ReceiptRecord
	switch {
	case receiptsFlags.latest:
		record, err = store.LatestReceipt()
	case receiptsFlags.seq > 0:
		record, err = store.GetReceipt(receiptsFlags.seq)
	default:
		return listReceipts(w, store)
	}
	if err != nil {
		return err
	}

	r := record.Receipt
	fmt.Fprintf(w, "Receipt #%d\n", record.Seq)
	fmt.Fprintf(w, "   Stored:     %s\n", record.StoredAt.Format(time.RFC3339))
	fmt.Fprintf(w, "   Headers:    %d\n", r.Count)
	fmt.Fprintf(w, "   Commitment: %s\n", r.JournalString())
	fmt.Fprintf(w, "   Image ID:   %s\n", r.ImageID)
	fmt.Fprintf(w, "   Prover:     %s\n", r.ProverAddress())

	if receiptsFlags.out == "" {
		return nil
	}

	data, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.WriteFile(receiptsFlags.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	fmt.Fprintf(w, "   Receipt:    %s\n", receiptsFlags.out)

	return nil
}

func listReceipts(w io.Writer, store *storage.Storage) error {
	records, err := store.Receipts()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No receipts stored")
		return nil
	}

	for _, record := range records {
		fmt.Fprintf(w, "%4d  %s  %7d headers  %s\n",
			record.Seq, record.StoredAt.Format(time.RFC3339), record.Receipt.Count, record.Receipt.JournalString())
	}

	return nil
}
