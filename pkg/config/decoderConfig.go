package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DecoderConfig carries everything the CLI needs to assemble a project
// decoder.
type DecoderConfig struct {
	Debug        bool   `mapstructure:"debug"`
	RpcUrl       string `mapstructure:"rpc_url"`
	ArtifactsDir string `mapstructure:"artifacts_dir"`
}

func NewDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		Debug:        viper.GetBool(KebabToSnakeCase(Debug)),
		RpcUrl:       viper.GetString(KebabToSnakeCase(RpcUrl)),
		ArtifactsDir: viper.GetString(KebabToSnakeCase(ArtifactsDir)),
	}
}

func (c *DecoderConfig) Validate() error {
	if c.RpcUrl == "" {
		return errors.New("rpc-url is required")
	}
	if c.ArtifactsDir == "" {
		return errors.New("artifacts-dir is required")
	}
	return nil
}
