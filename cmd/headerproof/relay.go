package main

import (
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/spf13/cobra"

	"github.com/yourusername/headerproof/internal/config"
	"github.com/yourusername/headerproof/internal/p2p"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve the local header store to libp2p peers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		relay, err := p2p.NewRelay(ctx, store, cfg.P2P.Listen, logger, libp2p.NATPortMap())
		if err != nil {
			return err
		}
		defer relay.Stop()

		if err := relay.Start(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "🌐 Header relay started\n")
		fmt.Fprintf(cmd.OutOrStdout(), "   Node ID: %s\n", relay.ID())
		for _, addr := range relay.Addrs() {
			fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", addr)
		}

		if cfg.P2P.Peer != "" {
			n, err := relay.SyncFromPeer(ctx, cfg.P2P.Peer)
			if err != nil {
				logger.Warn().Err(err).Str("peer", cfg.P2P.Peer).Msg("initial sync failed")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "📥 Synced %d headers from %s\n", n, cfg.P2P.Peer)
			}
		}

		<-ctx.Done()
		logger.Info().Msg("relay stopped")
		return nil
	},
}

func init() {
	relayCmd.Flags().String("listen", "/ip4/0.0.0.0/tcp/4001", "libp2p listen multiaddr")
	bindFlags(relayCmd.Flags(), map[string]string{config.KeyP2PListen: "listen"})
}
