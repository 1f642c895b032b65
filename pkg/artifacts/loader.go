package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// artifactFile mirrors the Hardhat/Truffle artifact JSON shape. Unknown
// fields are ignored.
type artifactFile struct {
	ContractName           string                                `json:"contractName"`
	ABI                    json.RawMessage                       `json:"abi"`
	Bytecode               string                                `json:"bytecode"`
	DeployedBytecode       string                                `json:"deployedBytecode"`
	LinkReferences         map[string]map[string][]LinkReference `json:"linkReferences"`
	DeployedLinkReferences map[string]map[string][]LinkReference `json:"deployedLinkReferences"`
	SourceMap              string                                `json:"sourceMap"`
	DeployedSourceMap      string                                `json:"deployedSourceMap"`
	AST                    json.RawMessage                       `json:"ast"`
	StorageLayout          *StorageLayout                        `json:"storageLayout"`
	Compiler               struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"compiler"`
}

// LoadArtifact reads a single compiled-contract artifact file.
func LoadArtifact(path string) (*Contract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read artifact %s", path)
	}
	var file artifactFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse artifact %s", path)
	}
	if file.ContractName == "" || len(file.ABI) == 0 {
		return nil, errors.Errorf("file %s is not a contract artifact", path)
	}

	parsed, err := abi.JSON(strings.NewReader(string(file.ABI)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse abi for %s", file.ContractName)
	}

	compilerName := file.Compiler.Name
	if compilerName == "" {
		compilerName = "solc"
	}

	return &Contract{
		Name:                   file.ContractName,
		RawABI:                 file.ABI,
		ABI:                    &parsed,
		Bytecode:               file.Bytecode,
		DeployedBytecode:       file.DeployedBytecode,
		LinkReferences:         file.LinkReferences,
		DeployedLinkReferences: file.DeployedLinkReferences,
		SourceMap:              file.SourceMap,
		DeployedSourceMap:      file.DeployedSourceMap,
		CompilerName:           compilerName,
		CompilerVersion:        file.Compiler.Version,
		AST:                    file.AST,
		StorageLayout:          file.StorageLayout,
	}, nil
}

// LoadDirectory scans dir recursively for contract artifact JSON files and
// assembles them into one Compilation. Non-artifact JSON files are skipped
// with a debug log rather than failing the load.
func LoadDirectory(dir string, logger *zap.Logger) (*Compilation, error) {
	compilation := &Compilation{ID: dir}
	seenSources := map[string]bool{}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		contract, loadErr := LoadArtifact(path)
		if loadErr != nil {
			logger.Sugar().Debugw("Skipping non-artifact json file",
				zap.String("path", path),
				zap.String("reason", loadErr.Error()),
			)
			return nil
		}
		compilation.Contracts = append(compilation.Contracts, contract)

		if contract.HasAST() {
			sourcePath, sourceIndex := sourceIdentity(contract.AST)
			if sourcePath != "" && !seenSources[sourcePath] {
				seenSources[sourcePath] = true
				compilation.Sources = append(compilation.Sources, &Source{
					Index: sourceIndex,
					Path:  sourcePath,
					AST:   contract.AST,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan artifact directory %s", dir)
	}

	logger.Sugar().Infow("Loaded compilation",
		zap.String("dir", dir),
		zap.Int("contracts", len(compilation.Contracts)),
		zap.Int("sources", len(compilation.Sources)),
	)
	return compilation, nil
}

// sourceIdentity pulls the source path and source-map file index out of an
// AST root node.
func sourceIdentity(raw json.RawMessage) (string, int) {
	var root struct {
		AbsolutePath string `json:"absolutePath"`
		Src          string `json:"src"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return "", 0
	}
	index := 0
	if parts := strings.Split(root.Src, ":"); len(parts) == 3 {
		if n, err := strconv.Atoi(parts[2]); err == nil {
			index = n
		}
	}
	return root.AbsolutePath, index
}
