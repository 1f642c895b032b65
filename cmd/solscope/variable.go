package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solscope/solscope/pkg/config"
	"github.com/solscope/solscope/pkg/logger"
	"github.com/solscope/solscope/pkg/util"
)

const blockFlag = "block"

var variableCmd = &cobra.Command{
	Use:   "variable [address] [name] [path...]",
	Short: "Decode a state variable of a deployed contract",
	Long: `Decode a state variable of a deployed contract.

The variable is named by bare name, "Contract.name", or declaration id, and
may be followed by an access path of array indices, mapping keys and struct
member names. Omitting the name decodes every state variable.`,
	Args: cobra.MinimumNArgs(1),
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

		ctx := cmd.Context()
		instance, err := d.ForAddress(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve contract at %s: %w", args[0], err)
		}

		var blockNumber *rpc.BlockNumber
		if viper.IsSet(config.KebabToSnakeCase(blockFlag)) {
			n := rpc.BlockNumber(viper.GetInt64(config.KebabToSnakeCase(blockFlag)))
			blockNumber = &n
		}

		if len(args) == 1 {
			values, err := instance.Variables(ctx, blockNumber)
			if err != nil {
				return fmt.Errorf("failed to decode variables: %w", err)
			}
			return printJson(values)
		}

		path := util.Map(args[2:], func(step string) interface{} { return step })
		value, err := instance.Variable(ctx, args[1], blockNumber, path...)
		if err != nil {
			return fmt.Errorf("failed to decode variable %s: %w", args[1], err)
		}
		return printJson(value)
	},
}

func init() {
	variableCmd.Flags().Int64(blockFlag, 0, "block number to read storage at (defaults to pending)")
}
