package config

import "strings"

const (
	EnvPrefix = "SOLSCOPE"

	Debug        = "debug"
	RpcUrl       = "rpc-url"
	ArtifactsDir = "artifacts-dir"
)

func KebabToSnakeCase(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
