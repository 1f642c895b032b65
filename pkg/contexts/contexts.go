// Package contexts fingerprints compiled bytecode so that live on-chain code
// can be matched back to the contract that produced it. Link-reference
// placeholders (unresolved library addresses) and the trailing metadata hash
// are treated as wildcards, so two binaries differing only in those regions
// share a context.
package contexts

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/solscope/solscope/pkg/artifacts"
)

// Context identifies one compiled contract by the keccak hash of its
// normalized bytecode. Contexts are immutable once built.
type Context struct {
	// ID is the keccak256 of the normalized bytecode, with every masked byte
	// zeroed. Identical normalized bytecode always yields identical IDs.
	ID common.Hash
	// ContractName names the compiled contract this context denotes.
	ContractName string
	// Contract is the compiled record itself.
	Contract *artifacts.Contract
	// Constructor marks a creation-bytecode context; such contexts can never
	// match already-deployed code.
	Constructor bool

	pattern []byte
	mask    []bool
}

// Build normalizes the contract's deployed (or creation) bytecode and
// returns its context.
func Build(contract *artifacts.Contract, constructor bool) (*Context, error) {
	binary := contract.DeployedBytecode
	if constructor {
		binary = contract.Bytecode
	}
	pattern, mask, err := Normalize(binary)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to normalize bytecode for %s", contract.Name)
	}
	if len(pattern) == 0 {
		return nil, errors.Errorf("contract %s has no bytecode to build a context from", contract.Name)
	}
	links := contract.DeployedLinkReferences
	if constructor {
		links = contract.LinkReferences
	}
	maskLinkReferences(pattern, mask, links)
	return &Context{
		ID:           crypto.Keccak256Hash(pattern),
		ContractName: contract.Name,
		Contract:     contract,
		Constructor:  constructor,
		pattern:      pattern,
		mask:         mask,
	}, nil
}

// Synthetic builds a placeholder context for ABI-only decoding when no
// deployed bytecode was recorded. It is deterministic in the contract name
// and must never be registered in a project's context tables.
func Synthetic(contract *artifacts.Contract) *Context {
	return &Context{
		ID:           crypto.Keccak256Hash([]byte("synthetic:" + contract.Name)),
		ContractName: contract.Name,
		Contract:     contract,
	}
}

// FromCode builds a deployed context from live on-chain bytecode, for
// contracts whose static artifact recorded none. The metadata suffix is
// masked the same way Build masks it.
func FromCode(contract *artifacts.Contract, code []byte) *Context {
	pattern := make([]byte, len(code))
	copy(pattern, code)
	mask := make([]bool, len(code))
	maskMetadataSuffix(pattern, mask)
	return &Context{
		ID:           crypto.Keccak256Hash(pattern),
		ContractName: contract.Name,
		Contract:     contract,
		pattern:      pattern,
		mask:         mask,
	}
}

// Normalize decodes 0x-prefixed hex bytecode into bytes plus a wildcard
// mask. Link placeholders (any non-hex characters, as solc emits
// __$hash$__ or __LibraryName__ runs) become masked zero bytes, and a
// plausible CBOR metadata suffix is masked as well.
func Normalize(binary string) ([]byte, []bool, error) {
	binary = strings.TrimPrefix(binary, "0x")
	if len(binary)%2 != 0 {
		return nil, nil, errors.Errorf("odd-length bytecode string")
	}
	pattern := make([]byte, len(binary)/2)
	mask := make([]bool, len(binary)/2)
	for i := 0; i < len(binary); i += 2 {
		b, err := hex.DecodeString(binary[i : i+2])
		if err != nil {
			// Link placeholder territory; wildcard the byte.
			mask[i/2] = true
			continue
		}
		pattern[i/2] = b[0]
	}
	maskMetadataSuffix(pattern, mask)
	return pattern, mask, nil
}

// maskLinkReferences wildcards the byte ranges the compiler declared as
// library placeholders. The non-hex heuristic in Normalize catches
// __$...$__ runs; the declared ranges additionally cover artifacts whose
// placeholders were already resolved to concrete library addresses.
func maskLinkReferences(pattern []byte, mask []bool, links map[string]map[string][]artifacts.LinkReference) {
	for _, byLibrary := range links {
		for _, refs := range byLibrary {
			for _, ref := range refs {
				if ref.Start < 0 || ref.Length <= 0 {
					continue
				}
				for i := ref.Start; i < ref.Start+ref.Length && i < len(pattern); i++ {
					pattern[i] = 0
					mask[i] = true
				}
			}
		}
	}
}

// maskMetadataSuffix wildcards the trailing CBOR metadata region when the
// final two bytes carry a plausible length for it.
func maskMetadataSuffix(pattern []byte, mask []bool) {
	n := len(pattern)
	if n < 2 {
		return
	}
	cborLen := int(pattern[n-2])<<8 | int(pattern[n-1])
	if cborLen == 0 || cborLen+2 > n {
		return
	}
	for i := n - cborLen - 2; i < n; i++ {
		pattern[i] = 0
		mask[i] = true
	}
}

// Matches compares raw bytecode against the context's normalized pattern.
// Masked positions on either side are wildcards. Deployed contexts require
// an exact length match; constructor contexts allow trailing bytes, since
// encoded constructor arguments follow the executable prefix.
func (c *Context) Matches(code []byte) bool {
	return c.matches(code, make([]bool, len(code)))
}

// MatchesHex is Matches for hex bytecode that may itself contain link
// placeholders, as uninstantiated library client binaries do.
func (c *Context) MatchesHex(binary string) bool {
	code, codeMask, err := Normalize(binary)
	if err != nil {
		return false
	}
	return c.matches(code, codeMask)
}

func (c *Context) matches(code []byte, codeMask []bool) bool {
	if c.Constructor {
		if len(code) < len(c.pattern) {
			return false
		}
	} else if len(code) != len(c.pattern) {
		return false
	}
	// The code side gets its own metadata suffix masked so differing
	// metadata hashes still match.
	scratch := make([]byte, len(code))
	copy(scratch, code)
	scratchMask := make([]bool, len(code))
	copy(scratchMask, codeMask)
	maskMetadataSuffix(scratch, scratchMask)

	for i := range c.pattern {
		if c.mask[i] || scratchMask[i] {
			continue
		}
		if c.pattern[i] != scratch[i] {
			return false
		}
	}
	return true
}

// BinaryLength is the byte length of the normalized pattern. For
// constructor contexts, calldata beyond this length is the encoded
// constructor arguments.
func (c *Context) BinaryLength() int {
	return len(c.pattern)
}

// Find returns the context in contexts whose pattern matches code, or nil.
func Find(contexts map[common.Hash]*Context, code []byte) *Context {
	for _, c := range contexts {
		if c.Matches(code) {
			return c
		}
	}
	return nil
}
