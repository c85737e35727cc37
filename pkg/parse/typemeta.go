// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/symbols"
)

// assignments walks a function/method body for the statement shapes the
// type-inference rules in pkg/symbols/typeinfer.go understand: name =
// Constructor(...), name = <literal>, self.attr = expr, and for x in L.
// Only direct statements of the body are scanned — intra-procedural,
// flow-insensitive, as the inference engine itself is specified.
func (e *extractor) assignments(node *sitter.Node, isMethod bool) []symbols.Assignment {
	body := node.ChildByFieldName(e.cfg.BodyField)
	if body == nil {
		return nil
	}
	switch e.cfg.Language {
	case model.LangPython:
		return e.pythonAssignments(body)
	case model.LangJavaScript, model.LangJSX, model.LangTypeScript, model.LangTSX:
		return e.jsAssignments(body)
	default:
		return nil
	}
}

func (e *extractor) pythonAssignments(body *sitter.Node) []symbols.Assignment {
	var out []symbols.Assignment
	n := int(body.NamedChildCount())
	for i := 0; i < n; i++ {
		stmt := body.NamedChild(i)
		target := stmt
		if stmt.Type() == "expression_statement" && stmt.NamedChildCount() > 0 {
			target = stmt.NamedChild(0)
		}
		switch target.Type() {
		case "assignment":
			if a, ok := e.pythonAssignment(target); ok {
				out = append(out, a)
			}
		case "for_statement":
			if a, ok := e.pythonForLoop(target); ok {
				out = append(out, a)
			}
		}
	}
	return out
}

func (e *extractor) pythonAssignment(node *sitter.Node) (symbols.Assignment, bool) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil {
		return symbols.Assignment{}, false
	}

	a := symbols.Assignment{}
	switch left.Type() {
	case "identifier":
		a.Name = e.text(left)
	case "attribute":
		obj := left.ChildByFieldName("object")
		attr := left.ChildByFieldName("attribute")
		if obj == nil || attr == nil || e.text(obj) != "self" {
			return symbols.Assignment{}, false
		}
		a.Name = e.text(attr)
		a.SelfAttr = true
	default:
		return symbols.Assignment{}, false
	}

	switch right.Type() {
	case "call":
		callee := right.ChildByFieldName("function")
		name := strings.TrimSpace(e.text(callee))
		if name != "" && unicode.IsUpper(rune(name[0])) {
			a.ConstructorCall = name
		} else {
			return symbols.Assignment{}, false
		}
	case "string":
		a.Literal = "str"
	case "integer":
		a.Literal = "int"
	case "float":
		a.Literal = "float"
	case "list", "list_comprehension":
		a.Literal = "list"
	case "dictionary", "dictionary_comprehension":
		a.Literal = "dict"
	default:
		return symbols.Assignment{}, false
	}
	return a, true
}

func (e *extractor) pythonForLoop(node *sitter.Node) (symbols.Assignment, bool) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" || right.Type() != "identifier" {
		return symbols.Assignment{}, false
	}
	return symbols.Assignment{Name: e.text(left), ForLoopOver: e.text(right)}, true
}

func (e *extractor) jsAssignments(body *sitter.Node) []symbols.Assignment {
	var out []symbols.Assignment
	n := int(body.NamedChildCount())
	for i := 0; i < n; i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "lexical_declaration" && stmt.Type() != "variable_declaration" {
			continue
		}
		nd := int(stmt.NamedChildCount())
		for j := 0; j < nd; j++ {
			decl := stmt.NamedChild(j)
			if decl.Type() != "variable_declarator" {
				continue
			}
			name := decl.ChildByFieldName("name")
			value := decl.ChildByFieldName("value")
			if name == nil || value == nil || name.Type() != "identifier" {
				continue
			}
			if value.Type() == "new_expression" {
				callee := value.ChildByFieldName("constructor")
				if callee != nil {
					out = append(out, symbols.Assignment{Name: e.text(name), ConstructorCall: strings.TrimSpace(e.text(callee))})
				}
			}
		}
	}
	return out
}
