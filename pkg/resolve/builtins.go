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

package resolve

import "github.com/kraklabs/lattice/pkg/model"

// defaultBuiltins returns the per-language identifier sets consulted by
// strategy 7 of the resolver ladder. These are the names the reference
// system keeps as a fixed table rather than resolving against the
// project's own registry.
func defaultBuiltins() map[model.Language]map[string]bool {
	return map[model.Language]map[string]bool{
		model.LangPython: set(
			"print", "len", "range", "enumerate", "zip", "map", "filter",
			"sorted", "reversed", "sum", "min", "max", "abs", "round",
			"open", "input", "isinstance", "issubclass", "hasattr", "getattr",
			"setattr", "delattr", "super", "type", "id", "repr", "str", "int",
			"float", "bool", "list", "dict", "set", "tuple", "frozenset",
			"iter", "next", "all", "any", "format", "vars", "dir", "hash",
		),
		model.LangJavaScript: jsGlobals(),
		model.LangTypeScript: jsGlobals(),
		model.LangJSX:        jsGlobals(),
		model.LangTSX:        jsGlobals(),
		model.LangGo: set(
			"len", "cap", "append", "copy", "delete", "make", "new", "panic",
			"recover", "print", "println", "close", "complex", "real", "imag",
			"min", "max", "clear",
		),
		model.LangJava: set(
			"println", "print", "printf", "equals", "hashCode", "toString",
			"getClass", "valueOf", "parseInt", "parseDouble", "format",
		),
		model.LangRust: set(
			"println", "print", "format", "vec", "panic", "assert", "assert_eq",
			"unwrap", "expect", "clone", "into", "from", "len", "iter",
		),
		model.LangCPP: set(
			"printf", "sprintf", "malloc", "free", "memcpy", "memset", "strlen",
			"strcpy", "strcat",
		),
	}
}

func jsGlobals() map[string]bool {
	return set(
		"console", "log", "setTimeout", "setInterval", "clearTimeout",
		"clearInterval", "JSON", "parse", "stringify", "Promise", "Array",
		"Object", "Map", "Set", "Symbol", "fetch", "require", "parseInt",
		"parseFloat", "isNaN", "isFinite", "encodeURIComponent",
		"decodeURIComponent",
	)
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

// defaultCppOperators maps overloadable C++ operator spellings to
// canonical builtin QNs, per strategy 3.
func defaultCppOperators() map[string]string {
	return map[string]string{
		"operator+":  "operator.add",
		"operator-":  "operator.sub",
		"operator*":  "operator.mul",
		"operator/":  "operator.div",
		"operator%":  "operator.mod",
		"operator==": "operator.eq",
		"operator!=": "operator.ne",
		"operator<":  "operator.lt",
		"operator>":  "operator.gt",
		"operator<=": "operator.le",
		"operator>=": "operator.ge",
		"operator[]": "operator.index",
		"operator()": "operator.call",
		"operator->": "operator.arrow",
		"operator=":  "operator.assign",
		"operator++": "operator.incr",
		"operator--": "operator.decr",
		"operator<<": "operator.shl",
		"operator>>": "operator.shr",
	}
}
