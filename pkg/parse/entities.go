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

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/symbols"
)

// maxUnwrapDepth bounds the shallow recursion used to look through wrapper
// nodes (export_statement, decorated_definition, lexical_declaration, …)
// that most grammars interpose between a module/class body and the
// function or class declaration it actually wraps.
const maxUnwrapDepth = 4

// extractor holds the per-file state threaded through entity extraction:
// the active language configuration, the raw source, and the side tables
// the orchestrator needs once the registry exists (FuncMeta) or for
// bookkeeping (ClassQN).
type extractor struct {
	cfg      *LanguageConfig
	src      []byte
	filePath string
	moduleQN string

	funcMeta map[string]FuncMeta
	classQN  map[string]string
}

func (e *extractor) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(e.src)
}

func (e *extractor) line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (e *extractor) endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// topLevel walks node's named children looking for class/function matches,
// unwrapping generic container nodes (export/decorator/statement wrappers)
// up to maxUnwrapDepth so declarations are found regardless of how deeply
// the grammar nests them before the module's top level.
func (e *extractor) topLevel(node *sitter.Node, depth int) []*model.CodeEntity {
	if e.funcMeta == nil {
		e.funcMeta = make(map[string]FuncMeta)
	}
	if e.classQN == nil {
		e.classQN = make(map[string]string)
	}

	var out []*model.CodeEntity
	n := int(node.NamedChildCount())
	for i := 0; i < n; i++ {
		child := node.NamedChild(i)
		out = append(out, e.dispatchTopLevel(child, depth)...)
	}
	return out
}

func (e *extractor) dispatchTopLevel(child *sitter.Node, depth int) []*model.CodeEntity {
	t := child.Type()
	switch {
	case e.cfg.ClassTypes[t]:
		return []*model.CodeEntity{e.buildClass(child)}
	case e.cfg.FunctionTypes[t]:
		return []*model.CodeEntity{e.buildFunction(child, "", false)}
	default:
		if depth >= maxUnwrapDepth {
			return nil
		}
		return e.topLevel(child, depth+1)
	}
}

func (e *extractor) buildClass(node *sitter.Node) *model.CodeEntity {
	name := e.fieldText(node, e.cfg.NameField)
	if name == "" {
		name = "<anonymous>"
	}
	qn := model.EntityQN(e.moduleQN, name)

	entity := &model.CodeEntity{
		Kind:          model.KindClass,
		Name:          name,
		QualifiedName: qn,
		Signature:     headerText(e.src, node, e.cfg.BodyField),
		Docstring:     e.docstring(node),
		Code:          e.text(node),
		StartLine:     e.line(node),
		EndLine:       e.endLine(node),
		FilePath:      e.filePath,
		BaseClasses:   e.baseClasses(node),
	}

	body := node.ChildByFieldName(e.cfg.BodyField)
	if body != nil {
		nb := int(body.NamedChildCount())
		for i := 0; i < nb; i++ {
			child := body.NamedChild(i)
			entity.Children = append(entity.Children, e.dispatchClassMember(child, qn)...)
		}
	}
	return entity
}

func (e *extractor) dispatchClassMember(child *sitter.Node, classQN string) []*model.CodeEntity {
	t := child.Type()
	switch {
	case e.cfg.ClassTypes[t]:
		return []*model.CodeEntity{e.buildClass(child)}
	case e.cfg.MethodTypes[t] || e.cfg.FunctionTypes[t]:
		return []*model.CodeEntity{e.buildFunction(child, classQN, true)}
	default:
		// Look one level through wrapper nodes (decorators, visibility
		// blocks) for a nested method.
		nb := int(child.NamedChildCount())
		var out []*model.CodeEntity
		for i := 0; i < nb; i++ {
			gc := child.NamedChild(i)
			if e.cfg.MethodTypes[gc.Type()] || e.cfg.FunctionTypes[gc.Type()] {
				out = append(out, e.buildFunction(gc, classQN, true))
			}
		}
		return out
	}
}

func (e *extractor) buildFunction(node *sitter.Node, classQN string, isMethod bool) *model.CodeEntity {
	name := e.fieldText(node, e.cfg.NameField)
	if name == "" {
		name = "<anonymous>"
	}

	parentQN := e.moduleQN
	if classQN != "" {
		parentQN = classQN
	}
	qn := model.EntityQN(parentQN, name)

	params := e.params(node)
	calls := e.calls(node)

	entity := &model.CodeEntity{
		Name:          name,
		QualifiedName: qn,
		Signature:     headerText(e.src, node, e.cfg.BodyField),
		Docstring:     e.docstring(node),
		Code:          e.text(node),
		StartLine:     e.line(node),
		EndLine:       e.endLine(node),
		FilePath:      e.filePath,
		IsAsync:       hasAsyncModifier(e.src, node),
		Calls:         calls,
	}
	if isMethod {
		entity.Kind = model.KindMethod
		entity.ParentClassQN = classQN
		entity.IsStatic = hasModifierKeyword(e.src, node, "static")
		entity.IsClassMethod = e.isClassMethodReceiver(params)
		e.classQN[qn] = classQN
	} else {
		entity.Kind = model.KindFunction
	}

	e.funcMeta[qn] = FuncMeta{
		Params:      e.symbolsParams(params),
		Assignments: e.assignments(node, isMethod),
	}
	return entity
}

// baseClasses extracts the ordered list of raw parent-class names from a
// class node's heritage/superclass/base-class field, if the language
// config names one.
func (e *extractor) baseClasses(node *sitter.Node) []string {
	if e.cfg.BasesField == "" {
		return nil
	}
	field := node.ChildByFieldName(e.cfg.BasesField)
	if field == nil {
		return nil
	}
	var out []string
	n := int(field.NamedChildCount())
	for i := 0; i < n; i++ {
		child := field.NamedChild(i)
		t := child.Type()
		if t == "argument_list" || t == "extends_clause" || t == "implements_clause" {
			out = append(out, e.baseClasses(child)...)
			continue
		}
		if t == "identifier" || t == "type_identifier" || t == "scoped_identifier" || t == "attribute" {
			out = append(out, e.text(child))
		}
	}
	if len(out) == 0 {
		txt := strings.TrimSpace(e.text(field))
		txt = strings.Trim(txt, "():{}")
		if txt != "" {
			for _, part := range strings.Split(txt, ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

// calls walks node's subtree (not descending into nested function or
// method nodes; nested class bodies are walked) and returns the
// deduplicated, source-order list of raw call-site strings.
func (e *extractor) calls(node *sitter.Node) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(n *sitter.Node, isRoot bool)
	walk = func(n *sitter.Node, isRoot bool) {
		if !isRoot && (e.cfg.FunctionTypes[n.Type()] || e.cfg.MethodTypes[n.Type()]) {
			return
		}
		if e.cfg.CallTypes[n.Type()] {
			raw := e.callText(n)
			if raw != "" && !seen[raw] {
				seen[raw] = true
				out = append(out, raw)
			}
		}
		nc := int(n.NamedChildCount())
		for i := 0; i < nc; i++ {
			walk(n.NamedChild(i), false)
		}
	}
	walk(node, true)
	return out
}

func (e *extractor) callText(call *sitter.Node) string {
	callee := call.ChildByFieldName(e.cfg.CalleeField)
	if callee == nil {
		return strings.TrimSpace(e.text(call)) + "()"
	}
	return strings.TrimSpace(e.text(callee)) + "()"
}

func (e *extractor) params(node *sitter.Node) []*sitter.Node {
	field := node.ChildByFieldName(e.cfg.ParamsField)
	if field == nil {
		return nil
	}
	var out []*sitter.Node
	n := int(field.NamedChildCount())
	for i := 0; i < n; i++ {
		out = append(out, field.NamedChild(i))
	}
	return out
}

func (e *extractor) fieldText(node *sitter.Node, field string) string {
	n := node.ChildByFieldName(field)
	if n == nil {
		return ""
	}
	// A declarator (C++) may itself wrap the identifier; unwrap once.
	if n.Type() == "function_declarator" || n.Type() == "pointer_declarator" {
		if inner := n.ChildByFieldName("declarator"); inner != nil {
			return e.text(inner)
		}
	}
	return e.text(n)
}

// docstring returns the first statement of a function/class body when
// it is a bare string-literal expression statement (Python-style
// docstrings). The same check runs for every language, so a leading
// string statement such as a JavaScript "use strict" is returned too.
func (e *extractor) docstring(node *sitter.Node) string {
	body := node.ChildByFieldName(e.cfg.BodyField)
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	target := first
	if first.Type() == "expression_statement" && first.NamedChildCount() > 0 {
		target = first.NamedChild(0)
	}
	if e.cfg.StringTypes[target.Type()] {
		return strings.Trim(e.text(target), "\"'` \t\n")
	}
	return ""
}

// headerText returns the node's source text up to (but excluding) its
// body field, trimmed — the function/class "signature" line(s).
func headerText(src []byte, node *sitter.Node, bodyField string) string {
	body := node.ChildByFieldName(bodyField)
	end := node.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	start := node.StartByte()
	if end < start || int(end) > len(src) {
		end = node.EndByte()
	}
	txt := string(src[start:end])
	if idx := strings.IndexByte(txt, '\n'); idx >= 0 && body == nil {
		txt = txt[:idx]
	}
	return strings.TrimRight(strings.TrimSpace(txt), "{:")
}

func hasAsyncModifier(src []byte, node *sitter.Node) bool {
	start := node.StartByte()
	prefixLen := uint32(6)
	if start < prefixLen {
		prefixLen = start
	}
	prefix := string(src[start-prefixLen : start])
	return strings.Contains(prefix, "async") || strings.HasPrefix(strings.TrimSpace(node.Content(src)), "async")
}

func hasModifierKeyword(src []byte, node *sitter.Node, kw string) bool {
	start := node.StartByte()
	var lookback uint32 = 32
	if start < lookback {
		lookback = start
	}
	prefix := string(src[start-lookback : start])
	return strings.Contains(prefix, kw)
}

// isClassMethodReceiver reports whether a Python method's first parameter
// is conventionally "cls" rather than "self".
func (e *extractor) isClassMethodReceiver(params []*sitter.Node) bool {
	if e.cfg.Language != model.LangPython || len(params) == 0 {
		return false
	}
	return strings.TrimSpace(e.text(params[0])) == "cls"
}

func (e *extractor) symbolsParams(nodes []*sitter.Node) []symbols.Param {
	out := make([]symbols.Param, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, symbols.Param{Name: e.paramName(n), Annotation: e.paramAnnotation(n)})
	}
	return out
}

func (e *extractor) paramName(n *sitter.Node) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return e.text(name)
	}
	txt := strings.TrimSpace(e.text(n))
	if idx := strings.IndexAny(txt, " :="); idx > 0 {
		return txt[:idx]
	}
	return txt
}

func (e *extractor) paramAnnotation(n *sitter.Node) string {
	if t := n.ChildByFieldName("type"); t != nil {
		return e.text(t)
	}
	return ""
}
