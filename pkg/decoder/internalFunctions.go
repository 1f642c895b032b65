package decoder

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/pkg/errors"

	"github.com/solscope/solscope/pkg/artifacts"
	"github.com/solscope/solscope/pkg/decoding"
)

// assembleInternalFunctionTable builds the pc-to-function table used to
// decode internal function pointer values. The deployed bytecode is scanned
// instruction by instruction (skipping push data), each instruction is
// aligned with its source-map entry, and jump destinations falling inside a
// function definition's source range are recorded under that function.
func assembleInternalFunctionTable(contract *artifacts.Contract, compilation *artifacts.Compilation, code []byte) (decoding.InternalFunctionTable, error) {
	entries, err := parseSourceMap(contract.DeployedSourceMap)
	if err != nil {
		return nil, err
	}

	functionsByFile := map[int][]artifacts.FunctionDefinition{}
	for _, source := range compilation.Sources {
		functionsByFile[source.Index] = artifacts.FunctionDefinitions(source.AST)
	}

	table := decoding.InternalFunctionTable{}
	instruction := 0
	for pc := 0; pc < len(code); instruction++ {
		op := vm.OpCode(code[pc])
		opPC := pc
		pc++
		if op >= vm.PUSH1 && op <= vm.PUSH32 {
			pc += int(op) - int(vm.PUSH1) + 1
		}
		if op != vm.JUMPDEST {
			continue
		}
		if instruction >= len(entries) {
			break
		}
		entry := entries[instruction]
		for _, fn := range functionsByFile[entry.file] {
			if entry.start >= fn.Start && entry.start < fn.Start+fn.Length {
				table[uint64(opPC)] = &decoding.InternalFunction{
					Name:         fn.Name,
					ContractName: fn.ContractName,
				}
				break
			}
		}
	}
	if len(table) == 0 {
		return nil, errors.New("no jump destinations mapped to functions")
	}
	return table, nil
}

type sourceMapEntry struct {
	start  int
	length int
	file   int
}

// parseSourceMap decodes a solc source map: semicolon-separated entries of
// colon-separated fields, with empty fields inheriting the previous entry's
// value.
func parseSourceMap(sourceMap string) ([]sourceMapEntry, error) {
	if sourceMap == "" {
		return nil, errors.New("empty source map")
	}
	raw := strings.Split(sourceMap, ";")
	entries := make([]sourceMapEntry, len(raw))
	current := sourceMapEntry{}
	for i, item := range raw {
		fields := strings.Split(item, ":")
		if len(fields) > 0 && fields[0] != "" {
			n, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, errors.Wrapf(err, "bad source map entry %d", i)
			}
			current.start = n
		}
		if len(fields) > 1 && fields[1] != "" {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, errors.Wrapf(err, "bad source map entry %d", i)
			}
			current.length = n
		}
		if len(fields) > 2 && fields[2] != "" {
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, errors.Wrapf(err, "bad source map entry %d", i)
			}
			current.file = n
		}
		entries[i] = current
	}
	return entries, nil
}
