// Package artifacts models the compiled contract records the decoder is
// configured with: ABI, creation and deployed bytecode, link references,
// source maps, syntax trees and the solc storage layout. These records are
// the decoder's schema; the package also converts the raw solc storage
// layout into the allocation tables in pkg/layout.
package artifacts

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LinkReference is one unresolved library placeholder inside bytecode,
// measured in bytes of the decoded binary.
type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Contract is one compiled contract.
type Contract struct {
	Name string
	// RawABI is the ABI JSON as found in the artifact.
	RawABI json.RawMessage
	// ABI is the parsed form used for calldata, event and return decoding.
	ABI *abi.ABI
	// Bytecode and DeployedBytecode are 0x-prefixed hex, possibly containing
	// __$...$__ link placeholders for unresolved libraries.
	Bytecode         string
	DeployedBytecode string
	// LinkReferences / DeployedLinkReferences map source path to library name
	// to placeholder positions.
	LinkReferences         map[string]map[string][]LinkReference
	DeployedLinkReferences map[string]map[string][]LinkReference

	SourceMap         string
	DeployedSourceMap string

	CompilerName    string
	CompilerVersion string

	// AST is the parsed syntax tree of the declaring source unit, when the
	// artifact carries one.
	AST json.RawMessage

	// StorageLayout is the raw solc storage layout, when emitted.
	StorageLayout *StorageLayout
}

// HasDeployedBytecode reports whether the artifact recorded non-empty
// deployed bytecode. Abstract contracts and interfaces do not.
func (c *Contract) HasDeployedBytecode() bool {
	b := strings.TrimPrefix(c.DeployedBytecode, "0x")
	return b != ""
}

// HasAST reports whether a declaration syntax tree is available.
func (c *Contract) HasAST() bool {
	return len(c.AST) > 0
}

// RecognizedCompiler reports whether the compiler identity is one the
// decoder knows how to build internal function tables for.
func (c *Contract) RecognizedCompiler() bool {
	return strings.EqualFold(c.CompilerName, "solc")
}

// Source is one compiled source unit.
type Source struct {
	// Index is the source's position in the compilation's source list, the
	// same index space source maps refer to.
	Index int
	Path  string
	AST   json.RawMessage
}

// Compilation groups the contracts and sources produced by one compiler run.
type Compilation struct {
	ID        string
	Contracts []*Contract
	Sources   []*Source
}

// ContractByName returns the named contract or nil.
func (c *Compilation) ContractByName(name string) *Contract {
	for _, contract := range c.Contracts {
		if contract.Name == name {
			return contract
		}
	}
	return nil
}

// SourceByIndex returns the source with the given index or nil.
func (c *Compilation) SourceByIndex(index int) *Source {
	for _, s := range c.Sources {
		if s.Index == index {
			return s
		}
	}
	return nil
}
