package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solscope/solscope/pkg/config"
	"github.com/solscope/solscope/pkg/decoder"
	"github.com/solscope/solscope/pkg/logger"
)

const (
	fromBlockFlag = "from-block"
	toBlockFlag   = "to-block"
	eventFlag     = "event"
)

var logsCmd = &cobra.Command{
	Use:   "logs [address]",
	Short: "Fetch and decode event logs, optionally scoped to one emitter",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initCmdFlags(cmd)

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: Config.Debug})

		if err := Config.Validate(); err != nil {
			return err
		}

		d, _, err := buildProjectDecoder(l)
		if err != nil {
			return err
		}

		opts := &decoder.EventOptions{
			Name: viper.GetString(config.KebabToSnakeCase(eventFlag)),
		}
		if viper.IsSet(config.KebabToSnakeCase(fromBlockFlag)) {
			n := rpc.BlockNumber(viper.GetInt64(config.KebabToSnakeCase(fromBlockFlag)))
			opts.FromBlock = &n
		}
		if viper.IsSet(config.KebabToSnakeCase(toBlockFlag)) {
			n := rpc.BlockNumber(viper.GetInt64(config.KebabToSnakeCase(toBlockFlag)))
			opts.ToBlock = &n
		}
		if len(args) == 1 {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid address %q", args[0])
			}
			addr := common.HexToAddress(args[0])
			opts.Address = &addr
		}

		events, err := d.Events(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("failed to fetch events: %w", err)
		}
		return printJson(events)
	},
}

func init() {
	logsCmd.Flags().Int64(fromBlockFlag, 0, "first block of the query range (defaults to latest)")
	logsCmd.Flags().Int64(toBlockFlag, 0, "last block of the query range (defaults to latest)")
	logsCmd.Flags().String(eventFlag, "", "keep only decodings of the named event")
}
