package artifacts

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/solscope/solscope/pkg/layout"
)

// The AST helpers below work on the generic JSON form of a solc syntax tree.
// Only a handful of node kinds matter to the decoder: enum definitions (for
// named enum values), function definitions (for the internal function table)
// and non-storage state variable declarations (constants and immutables).

type astNode = map[string]interface{}

func walkAST(raw json.RawMessage, visit func(node astNode)) {
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return
	}
	var walk func(v interface{}, parent astNode)
	walk = func(v interface{}, parent astNode) {
		switch n := v.(type) {
		case astNode:
			visit(n)
			for _, child := range n {
				walk(child, n)
			}
		case []interface{}:
			for _, child := range n {
				walk(child, parent)
			}
		}
	}
	walk(root, nil)
}

func nodeString(n astNode, key string) string {
	s, _ := n[key].(string)
	return s
}

func nodeInt(n astNode, key string) int64 {
	f, ok := n[key].(float64)
	if !ok {
		return 0
	}
	return int64(f)
}

// fillEnumValues back-fills the member names of every enum type in the memo
// from the syntax tree. The storage layout output alone does not carry them.
func fillEnumValues(raw json.RawMessage, memo map[string]*layout.Type) {
	enums := map[string][]string{}
	walkAST(raw, func(n astNode) {
		if nodeString(n, "nodeType") != "EnumDefinition" {
			return
		}
		name := nodeString(n, "canonicalName")
		if name == "" {
			name = nodeString(n, "name")
		}
		members, _ := n["members"].([]interface{})
		var values []string
		for _, m := range members {
			if mn, ok := m.(astNode); ok {
				values = append(values, nodeString(mn, "name"))
			}
		}
		enums[name] = values
	})
	for _, t := range memo {
		if t.Class == layout.ClassEnum && len(t.EnumValues) == 0 {
			t.EnumValues = enums[t.Name]
		}
	}
}

type nonStorageDecl struct {
	ID         int64
	Contract   string
	Name       string
	TypeString string
	Immutable  bool
}

// nonStorageDeclarations collects constant and immutable state variables,
// which solc omits from the storage layout.
func nonStorageDeclarations(raw json.RawMessage) []nonStorageDecl {
	var decls []nonStorageDecl
	walkAST(raw, func(n astNode) {
		if nodeString(n, "nodeType") != "ContractDefinition" {
			return
		}
		contractName := nodeString(n, "name")
		nodes, _ := n["nodes"].([]interface{})
		for _, child := range nodes {
			cn, ok := child.(astNode)
			if !ok || nodeString(cn, "nodeType") != "VariableDeclaration" {
				continue
			}
			if sv, _ := cn["stateVariable"].(bool); !sv {
				continue
			}
			constant, _ := cn["constant"].(bool)
			mutability := nodeString(cn, "mutability")
			if !constant && mutability != "immutable" {
				continue
			}
			typeString := ""
			if td, ok := cn["typeDescriptions"].(astNode); ok {
				typeString = nodeString(td, "typeString")
			}
			decls = append(decls, nonStorageDecl{
				ID:         nodeInt(cn, "id"),
				Contract:   contractName,
				Name:       nodeString(cn, "name"),
				TypeString: typeString,
				Immutable:  mutability == "immutable",
			})
		}
	})
	return decls
}

// FunctionDefinition is an AST function with its source range, used when
// assembling the internal function table.
type FunctionDefinition struct {
	Name         string
	ContractName string
	Start        int
	Length       int
	FileIndex    int
}

func FunctionDefinitions(raw json.RawMessage) []FunctionDefinition {
	var defs []FunctionDefinition
	var walkContract func(n astNode, contractName string)
	walkContract = func(n astNode, contractName string) {
		if nodeString(n, "nodeType") == "ContractDefinition" {
			contractName = nodeString(n, "name")
		}
		if nodeString(n, "nodeType") == "FunctionDefinition" {
			start, length, file, ok := parseSrc(nodeString(n, "src"))
			if ok {
				defs = append(defs, FunctionDefinition{
					Name:         nodeString(n, "name"),
					ContractName: contractName,
					Start:        start,
					Length:       length,
					FileIndex:    file,
				})
			}
		}
		for _, child := range n {
			switch c := child.(type) {
			case astNode:
				walkContract(c, contractName)
			case []interface{}:
				for _, item := range c {
					if cn, ok := item.(astNode); ok {
						walkContract(cn, contractName)
					}
				}
			}
		}
	}
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil
	}
	if rn, ok := root.(astNode); ok {
		walkContract(rn, "")
	}
	return defs
}

// parseSrc splits a solc "start:length:file" source range.
func parseSrc(src string) (start, length, file int, ok bool) {
	parts := strings.Split(src, ":")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var err error
	if start, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, false
	}
	if length, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, false
	}
	if file, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, false
	}
	return start, length, file, true
}
