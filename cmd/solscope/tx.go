package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"

	"github.com/solscope/solscope/pkg/logger"
)

var txCmd = &cobra.Command{
	Use:   "tx [hash]",
	Short: "Decode a transaction's calldata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initCmdFlags(cmd)

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: Config.Debug})

		if err := Config.Validate(); err != nil {
			return err
		}

		d, p, err := buildProjectDecoder(l)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		tx, minedAt, err := p.TransactionByHash(ctx, common.HexToHash(args[0]))
		if err != nil {
			return fmt.Errorf("failed to fetch transaction: %w", err)
		}

		var blockNumber *rpc.BlockNumber
		if minedAt != nil {
			n := rpc.BlockNumber(minedAt.Int64())
			blockNumber = &n
		}

		decoding, err := d.DecodeTransaction(ctx, tx, blockNumber)
		if err != nil {
			return fmt.Errorf("failed to decode transaction: %w", err)
		}
		return printJson(decoding)
	},
}
