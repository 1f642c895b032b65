package decoder

import (
	"github.com/pkg/errors"

	"github.com/solscope/solscope/pkg/storageSlot"
)

// Error kinds reported to callers. Provider failures are never wrapped into
// these; they propagate unchanged, and retry policy belongs to the provider.
var (
	ErrNoProvider         = errors.New("no data provider supplied")
	ErrContractNotFound   = errors.New("contract artifact not found among known compilations")
	ErrNoMatchingContext  = errors.New("code at address does not match any known deployed context")
	ErrInvalidAddress     = errors.New("malformed address")
	ErrMissingDeclaration = errors.New("no declaration node available for contract")
	ErrMissingAllocation  = errors.New("no storage allocation available for contract")

	// Lookup failures surface the slot resolver's own sentinels.
	ErrVariableNotFound = storageSlot.ErrVariableNotFound
	ErrMemberNotFound   = storageSlot.ErrMemberNotFound
)
