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
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/lattice/pkg/model"
)

// stringSet is a node-type lookup table; presence means membership.
type stringSet map[string]bool

func set(types ...string) stringSet {
	s := make(stringSet, len(types))
	for _, t := range types {
		s[t] = true
	}
	return s
}

// LanguageConfig is the fixed per-language configuration described in the
// parser component design: node-type sets driving extraction of
// functions/classes/methods/calls/imports/comments/strings for one
// language, plus the field names used to pull a declaration's name,
// parameter list, and body out of its AST node.
type LanguageConfig struct {
	Language   model.Language
	TSLanguage *sitter.Language

	ClassTypes   stringSet
	FunctionTypes stringSet
	MethodTypes  stringSet // only consulted when nested inside a class body
	CallTypes    stringSet
	ImportTypes  stringSet
	CommentTypes stringSet
	StringTypes  stringSet

	NameField   string
	ParamsField string
	BodyField   string
	CalleeField string // field holding the callee expression on a call node
	BasesField  string // field holding a class's superclass/heritage clause
}

var registry map[model.Language]*LanguageConfig

func init() {
	registry = map[model.Language]*LanguageConfig{
		model.LangGo: {
			Language:   model.LangGo,
			TSLanguage: golang.GetLanguage(),
			FunctionTypes: set("function_declaration", "method_declaration"),
			ClassTypes:   set("type_declaration"),
			CallTypes:    set("call_expression"),
			ImportTypes:  set("import_declaration"),
			CommentTypes: set("comment"),
			StringTypes:  set("raw_string_literal", "interpreted_string_literal"),
			NameField:    "name",
			ParamsField:  "parameters",
			BodyField:    "body",
			CalleeField:  "function",
		},
		model.LangPython: {
			Language:     model.LangPython,
			TSLanguage:   python.GetLanguage(),
			FunctionTypes: set("function_definition"),
			ClassTypes:   set("class_definition"),
			MethodTypes:  set("function_definition"),
			CallTypes:    set("call"),
			ImportTypes:  set("import_statement", "import_from_statement", "future_import_statement"),
			CommentTypes: set("comment"),
			StringTypes:  set("string"),
			NameField:    "name",
			ParamsField:  "parameters",
			BodyField:    "body",
			CalleeField:  "function",
			BasesField:   "superclasses",
		},
		model.LangJavaScript: jsLikeConfig(model.LangJavaScript, javascript.GetLanguage()),
		model.LangJSX:        jsLikeConfig(model.LangJSX, javascript.GetLanguage()),
		model.LangTypeScript: jsLikeConfig(model.LangTypeScript, typescript.GetLanguage()),
		model.LangTSX:        jsLikeConfig(model.LangTSX, tsx.GetLanguage()),
		model.LangJava: {
			Language:     model.LangJava,
			TSLanguage:   java.GetLanguage(),
			FunctionTypes: set("method_declaration", "constructor_declaration"),
			ClassTypes:   set("class_declaration", "interface_declaration"),
			MethodTypes:  set("method_declaration", "constructor_declaration"),
			CallTypes:    set("method_invocation", "object_creation_expression"),
			ImportTypes:  set("import_declaration"),
			CommentTypes: set("line_comment", "block_comment"),
			StringTypes:  set("string_literal"),
			NameField:    "name",
			ParamsField:  "parameters",
			BodyField:    "body",
			CalleeField:  "name",
			BasesField:   "superclass",
		},
		model.LangRust: {
			Language:     model.LangRust,
			TSLanguage:   rust.GetLanguage(),
			FunctionTypes: set("function_item"),
			ClassTypes:   set("struct_item", "impl_item", "trait_item"),
			MethodTypes:  set("function_item"),
			CallTypes:    set("call_expression"),
			ImportTypes:  set("use_declaration"),
			CommentTypes: set("line_comment", "block_comment"),
			StringTypes:  set("string_literal"),
			NameField:    "name",
			ParamsField:  "parameters",
			BodyField:    "body",
			CalleeField:  "function",
		},
		model.LangCPP: {
			Language:     model.LangCPP,
			TSLanguage:   cpp.GetLanguage(),
			FunctionTypes: set("function_definition"),
			ClassTypes:   set("class_specifier", "struct_specifier"),
			MethodTypes:  set("function_definition"),
			CallTypes:    set("call_expression"),
			ImportTypes:  set("preproc_include"),
			CommentTypes: set("comment"),
			StringTypes:  set("string_literal"),
			NameField:    "declarator",
			ParamsField:  "parameters",
			BodyField:    "body",
			CalleeField:  "function",
			BasesField:   "base_class_clause",
		},
	}
}

func jsLikeConfig(lang model.Language, tsLang *sitter.Language) *LanguageConfig {
	return &LanguageConfig{
		Language:   lang,
		TSLanguage: tsLang,
		FunctionTypes: set("function_declaration", "function", "generator_function_declaration"),
		ClassTypes:   set("class_declaration", "class"),
		MethodTypes:  set("method_definition"),
		CallTypes:    set("call_expression"),
		ImportTypes:  set("import_statement", "import_require_clause"),
		CommentTypes: set("comment"),
		StringTypes:  set("string", "template_string"),
		NameField:    "name",
		ParamsField:  "parameters",
		BodyField:    "body",
		CalleeField:  "function",
		BasesField:   "heritage",
	}
}

// ConfigFor returns the fixed configuration for lang, if supported.
func ConfigFor(lang model.Language) (*LanguageConfig, bool) {
	c, ok := registry[lang]
	return c, ok
}
