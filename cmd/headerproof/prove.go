package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/headerproof/internal/blockchain"
	"github.com/yourusername/headerproof/internal/config"
	"github.com/yourusername/headerproof/internal/explorer"
	"github.com/yourusername/headerproof/internal/grpc"
	"github.com/yourusername/headerproof/internal/p2p"
	"github.com/yourusername/headerproof/internal/receipt"
	"github.com/yourusername/headerproof/internal/storage"
	"github.com/yourusername/headerproof/internal/stream"
)

var proveFlags struct {
	source string
	file   string
	from   uint32
	count  uint32
	out    string
	remote string
}

var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Validate a header range and seal a receipt",
	Example: `  headerproof prove --source esplora --from 0 --count 2016
  headerproof prove --source file --file headers.bin --out receipt.bin
  headerproof prove --source store --from 100 --count 10 --remote 127.0.0.1:50051`,
	RunE: runProve,
}

func init() {
	flags := proveCmd.Flags()
	flags.StringVar(&proveFlags.source, "source", "file", "file|esplora|bhs|store|peer")
	flags.StringVar(&proveFlags.file, "file", "-", "record stream file for --source file (- for stdin)")
	flags.Uint32Var(&proveFlags.from, "from", 0, "first height")
	flags.Uint32Var(&proveFlags.count, "count", 1, "number of headers")
	flags.StringVar(&proveFlags.out, "out", "", "write the receipt to this file")
	flags.StringVar(&proveFlags.remote, "remote", "", "prove on a remote gRPC prover instead of locally")
}

// closer releases whatever backs a record source
type closer func()

func explorerFetcher(kind string) (explorer.Fetcher, error) {
	url := cfg.Explorer.URL
	client := &http.Client{Timeout: 30 * time.Second}

	switch kind {
	case "esplora":
		if url == "" {
			url = explorer.DefaultEsploraURL
		}
		return explorer.NewEsplora(url, client, logger), nil
	case "bhs":
		if url == "" {
			return nil, config.ErrExplorerURLRequired
		}
		return explorer.NewHeadersService(url, cfg.Explorer.APIKey, client, logger), nil
	default:
		return nil, fmt.Errorf("unknown explorer %q", kind)
	}
}

// openSource builds the record source named by --source. store is only used
// for the store source.
func openSource(ctx context.Context, store *storage.Storage) (blockchain.RecordSource, closer, error) {
	switch proveFlags.source {
	case "file":
		if proveFlags.file == "-" {
			return stream.NewReader(os.Stdin), func() {}, nil
		}
		f, err := os.Open(proveFlags.file)
		if err != nil {
			return nil, nil, err
		}
		return stream.NewReader(f), func() { _ = f.Close() }, nil

	case "esplora", "bhs":
		fetcher, err := explorerFetcher(proveFlags.source)
		if err != nil {
			return nil, nil, err
		}
		src := explorer.NewSource(ctx, fetcher, proveFlags.from, proveFlags.count, cfg.Explorer.Prefetch)
		return src, src.Close, nil

	case "store":
		if store == nil {
			return nil, nil, fmt.Errorf("no header store open")
		}
		src := store.Range(proveFlags.from, proveFlags.count)
		return src, src.Close, nil

	case "peer":
		if cfg.P2P.Peer == "" {
			return nil, nil, fmt.Errorf("--peer is required for --source peer")
		}
		relay, err := p2p.NewRelay(ctx, nil, "/ip4/0.0.0.0/tcp/0", logger)
		if err != nil {
			return nil, nil, err
		}
		rr, err := relay.FetchRange(ctx, cfg.P2P.Peer, proveFlags.from, proveFlags.count)
		if err != nil {
			_ = relay.Stop()
			return nil, nil, err
		}
		return rr, func() {
			_ = rr.Close()
			_ = relay.Stop()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q", proveFlags.source)
	}
}

func runProve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var r *receipt.Receipt

	if proveFlags.remote != "" {
		var store *storage.Storage
		if proveFlags.source == "store" {
			var err error
			if store, err = openStore(); err != nil {
				return err
			}
			defer store.Close()
		}

		src, release, err := openSource(ctx, store)
		if err != nil {
			return err
		}
		defer release()

		client, err := grpc.Dial(ctx, proveFlags.remote)
		if err != nil {
			return err
		}
		defer client.Close()

		if r, err = client.Prove(ctx, src); err != nil {
			return err
		}
	} else {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		svc, err := newProver(store, nil)
		if err != nil {
			return err
		}

		src, release, err := openSource(ctx, store)
		if err != nil {
			return err
		}
		defer release()

		if r, err = svc.Prove(ctx, src); err != nil {
			return err
		}
	}

	return printReceipt(cmd.OutOrStdout(), r)
}

func printReceipt(w io.Writer, r *receipt.Receipt) error {
	fmt.Fprintf(w, "✅ Chain valid\n")
	fmt.Fprintf(w, "   Headers:    %d\n", r.Count)
	fmt.Fprintf(w, "   Commitment: %s\n", r.JournalString())
	fmt.Fprintf(w, "   Image ID:   %s\n", r.ImageID)
	fmt.Fprintf(w, "   Prover:     %s\n", r.ProverAddress())

	if proveFlags.out == "" {
		return nil
	}

	data, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.WriteFile(proveFlags.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	fmt.Fprintf(w, "   Receipt:    %s\n", proveFlags.out)

	return nil
}
