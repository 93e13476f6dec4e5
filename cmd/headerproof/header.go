package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/spf13/cobra"

	"github.com/yourusername/headerproof/pkg/types"
)

var headerCmd = &cobra.Command{
	Use:   "header <height|hash>",
	Short: "Print a header from the local store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var height uint32
		if len(args[0]) == chainhash.MaxHashStringSize {
			hash, err := chainhash.NewHashFromStr(args[0])
			if err != nil {
				return err
			}
			if height, err = store.HeightOf(*hash); err != nil {
				return err
			}
		} else {
			n, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid height %q: %w", args[0], err)
			}
			height = uint32(n)
		}

		raw, err := store.GetHeader(height)
		if err != nil {
			return err
		}
		header, err := types.NewBlockHeader(raw)
		if err != nil {
			return err
		}

		bits := header.Bits()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Header %d\n", height)
		fmt.Fprintf(w, "   Hash:       %s\n", header.Hash())
		fmt.Fprintf(w, "   Version:    %d\n", header.Version())
		fmt.Fprintf(w, "   Previous:   %s\n", header.PrevBlockHash())
		fmt.Fprintf(w, "   Merkle:     %s\n", header.MerkleRoot())
		fmt.Fprintf(w, "   Time:       %s\n", time.Unix(int64(header.Timestamp()), 0).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "   Bits:       %08x\n", binary.LittleEndian.Uint32(bits[:]))
		fmt.Fprintf(w, "   Nonce:      %d\n", header.Nonce())
		fmt.Fprintf(w, "   Raw:        %s\n", hex.EncodeToString(header.Bytes()))
		return nil
	},
}
