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

package symbols

import (
	"strings"
)

// TypeMap is the intra-procedural, flow-insensitive local_var_types map
// built for one function: name -> type_qn (or an unqualified type name
// when the QN cannot be determined). Unknowns are simply absent.
type TypeMap map[string]string

// Assignment is one `name = expr` statement observed in a function body,
// in source order, classified by the extractor into one of the shapes
// the inference rules understand.
type Assignment struct {
	Name         string
	ConstructorCall string // set when expr is `Name(...)` and Name starts uppercase
	Literal      string    // one of list|dict|str|int|float, set for literal assignments
	ForLoopOver  string    // set when this binding comes from `for Name in <expr>`
	SelfAttr     bool      // true for `self.attr = expr` inside a method
}

// Param is one function parameter, optionally annotated.
type Param struct {
	Name       string
	Annotation string // raw annotation text, possibly empty
}

// InferLocalTypes builds local_var_types for a function given its
// parameters, body assignments, the enclosing class's QN (for `self`
// scoping), and a registry used for the Param-name heuristic.
func InferLocalTypes(params []Param, assignments []Assignment, classQN string, reg *Registry) TypeMap {
	types := make(TypeMap)

	for _, p := range params {
		if p.Annotation != "" {
			types[p.Name] = normalizeAnnotation(p.Annotation)
			continue
		}
		if t, ok := heuristicParamType(p.Name, classQN, reg); ok {
			types[p.Name] = t
		}
	}

	// names assigned a literal list, recorded with an empty element type:
	// the list's contents are not inspected, so the for-loop case below
	// never binds a loop variable's type.
	listElemTypes := make(map[string]string)

	for _, a := range assignments {
		switch {
		case a.ConstructorCall != "":
			if a.SelfAttr {
				types["self."+a.Name] = a.ConstructorCall
			} else {
				types[a.Name] = a.ConstructorCall
			}
		case a.Literal != "":
			if a.SelfAttr {
				types["self."+a.Name] = a.Literal
			} else {
				types[a.Name] = a.Literal
			}
			if a.Literal == "list" {
				listElemTypes[a.Name] = ""
			}
		case a.ForLoopOver != "":
			if elem, ok := listElemTypes[a.ForLoopOver]; ok && elem != "" {
				types[a.Name] = elem
			}
		}
	}

	return types
}

// normalizeAnnotation strips generics/unions from a raw annotation: keep
// the first alternative of a union, strip `[]` and `<…>` generic
// brackets.
func normalizeAnnotation(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.IndexAny(s, "|"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, " or "); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '['); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.IndexByte(s, '<'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(strings.Trim(s, "\"'"))
}

// heuristicParamType implements the parameter-named-foo-matches-class-Foo
// rule: case-insensitive equality, suffix, or containment match against
// a registered class simple name, scored and accepted at >= 51/100.
func heuristicParamType(paramName, classQN string, reg *Registry) (string, bool) {
	if reg == nil || paramName == "" {
		return "", false
	}
	lowerParam := strings.ToLower(paramName)
	var best string
	bestScore := 0
	for _, qn := range candidateClassNames(classQN, reg) {
		simple := lastSegment(qn)
		lowerSimple := strings.ToLower(simple)
		score := matchScore(lowerParam, lowerSimple)
		if score >= 51 && score > bestScore {
			bestScore = score
			best = qn
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// candidateClassNames returns class QNs plausibly in scope: those
// registered under the same module prefix as classQN plus any simple
// name collisions found via FindWithPrefix on the module.
func candidateClassNames(classQN string, reg *Registry) []string {
	module := classQN
	if idx := strings.LastIndex(module, "."); idx >= 0 {
		module = module[:idx]
	}
	matches := reg.FindWithPrefix(module)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Kind == "class" {
			out = append(out, m.QN)
		}
	}
	return out
}

// matchScore scores a (param, class-simple-name) pair on a 0-100 scale:
// exact case-insensitive equality scores 100; suffix match scores 80;
// containment scores 60; otherwise 0.
func matchScore(param, classSimple string) int {
	if param == classSimple {
		return 100
	}
	if strings.HasSuffix(classSimple, param) || strings.HasSuffix(param, classSimple) {
		return 80
	}
	if strings.Contains(classSimple, param) || strings.Contains(param, classSimple) {
		return 60
	}
	return 0
}
