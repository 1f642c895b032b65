package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/solscope/solscope/pkg/artifacts"
	"github.com/solscope/solscope/pkg/config"
	"github.com/solscope/solscope/pkg/decoder"
	"github.com/solscope/solscope/pkg/provider"
)

func initCmdFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}

func buildProjectDecoder(l *zap.Logger) (*decoder.ProjectDecoder, *provider.RpcProvider, error) {
	compilation, err := artifacts.LoadDirectory(Config.ArtifactsDir, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load artifacts: %w", err)
	}

	p, err := provider.NewRpcProvider(Config.RpcUrl, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to rpc provider: %w", err)
	}

	d, err := decoder.NewProjectDecoder(p, []*artifacts.Compilation{compilation}, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize decoder: %w", err)
	}
	return d, p, nil
}

func printJson(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
