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
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/lattice/pkg/model"
)

// extractImports walks root for nodes matching the language's import node
// types and hands each one's source text to the per-language regex rules
// in §4.4. Tree-sitter locates the import statements; the per-language
// import *syntax* (what binds to what local name) is intentionally not
// re-derived from the grammar here, since it is ImportProcessor's job
// (pkg/symbols/imports.go) to turn these raw records into a resolvable
// mapping — this stage only needs to emit well-formed ImportRecords.
func extractImports(cfg *LanguageConfig, root *sitter.Node, src []byte) []model.ImportRecord {
	var out []model.ImportRecord
	var walk func(n *sitter.Node, depth int)
	walk = func(n *sitter.Node, depth int) {
		if cfg.ImportTypes[n.Type()] {
			out = append(out, parseImportNode(cfg, n, src)...)
			return
		}
		if depth >= maxUnwrapDepth {
			return
		}
		nc := int(n.NamedChildCount())
		for i := 0; i < nc; i++ {
			walk(n.NamedChild(i), depth+1)
		}
	}
	walk(root, 0)
	return out
}

func parseImportNode(cfg *LanguageConfig, n *sitter.Node, src []byte) []model.ImportRecord {
	text := n.Content(src)
	line := int(n.StartPoint().Row) + 1
	switch cfg.Language {
	case model.LangPython:
		return parsePythonImport(text, line)
	case model.LangGo:
		return parseGoImport(text, line)
	case model.LangJavaScript, model.LangJSX, model.LangTypeScript, model.LangTSX:
		return parseJSImport(text, line)
	case model.LangJava:
		return parseJavaImport(text, line)
	case model.LangRust:
		return parseRustImport(text, line)
	case model.LangCPP:
		return parseCppImport(text, line)
	default:
		return nil
	}
}

var (
	rePyImport     = regexp.MustCompile(`^import\s+([\w.]+)(?:\s+as\s+(\w+))?`)
	rePyFromImport = regexp.MustCompile(`^from\s+(\.*[\w.]*)\s+import\s+(.+)$`)
	rePyNamePart   = regexp.MustCompile(`^(\*|\w+)(?:\s+as\s+(\w+))?$`)
)

func parsePythonImport(text string, line int) []model.ImportRecord {
	text = strings.TrimSpace(text)
	if m := rePyFromImport.FindStringSubmatch(text); m != nil {
		source := m[1]
		names := strings.Split(strings.Trim(m[2], "()"), ",")
		var out []model.ImportRecord
		for _, raw := range names {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			pm := rePyNamePart.FindStringSubmatch(raw)
			if pm == nil {
				continue
			}
			out = append(out, model.ImportRecord{Name: pm[1], Alias: pm[2], SourceModule: source, LineNumber: line})
		}
		return out
	}
	if m := rePyImport.FindStringSubmatch(text); m != nil {
		return []model.ImportRecord{{Name: "", Alias: m[2], SourceModule: m[1], LineNumber: line}}
	}
	return nil
}

var reGoImportSpec = regexp.MustCompile(`(?:(\w+|_|\.)\s+)?"([^"]+)"`)

func parseGoImport(text string, line int) []model.ImportRecord {
	var out []model.ImportRecord
	for _, m := range reGoImportSpec.FindAllStringSubmatch(text, -1) {
		alias, path := m[1], m[2]
		segs := strings.Split(path, "/")
		name := segs[len(segs)-1]
		out = append(out, model.ImportRecord{
			Name:         name,
			Alias:        alias,
			SourceModule: path,
			IsExternal:   !strings.HasPrefix(path, "."),
			LineNumber:   line,
		})
	}
	return out
}

var (
	reJSFrom       = regexp.MustCompile(`from\s+['"]([^'"]+)['"]`)
	reJSRequire    = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	reJSDefault    = regexp.MustCompile(`^import\s+(\w+)\s*,?`)
	reJSNamespace  = regexp.MustCompile(`\*\s+as\s+(\w+)`)
	reJSNamedGroup = regexp.MustCompile(`\{([^}]*)\}`)
	reJSNamedPart  = regexp.MustCompile(`^(\w+)(?:\s+as\s+(\w+))?$`)
)

func parseJSImport(text string, line int) []model.ImportRecord {
	text = strings.TrimSpace(text)
	if m := reJSRequire.FindStringSubmatch(text); m != nil {
		source := m[1]
		name := source
		if idx := strings.LastIndex(source, "/"); idx >= 0 {
			name = source[idx+1:]
		}
		return []model.ImportRecord{{Name: name, SourceModule: source, LineNumber: line}}
	}

	fm := reJSFrom.FindStringSubmatch(text)
	if fm == nil {
		return nil
	}
	source := fm[1]
	var out []model.ImportRecord

	if dm := reJSDefault.FindStringSubmatch(text); dm != nil {
		out = append(out, model.ImportRecord{Name: "default", Alias: dm[1], SourceModule: source, LineNumber: line})
	}
	if nm := reJSNamespace.FindStringSubmatch(text); nm != nil {
		out = append(out, model.ImportRecord{Name: "*", Alias: nm[1], SourceModule: source, LineNumber: line})
	}
	if gm := reJSNamedGroup.FindStringSubmatch(text); gm != nil {
		for _, part := range strings.Split(gm[1], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			pm := reJSNamedPart.FindStringSubmatch(part)
			if pm == nil {
				continue
			}
			out = append(out, model.ImportRecord{Name: pm[1], Alias: pm[2], SourceModule: source, LineNumber: line})
		}
	}
	if len(out) == 0 {
		out = append(out, model.ImportRecord{Name: "default", SourceModule: source, LineNumber: line})
	}
	return out
}

var reJavaImport = regexp.MustCompile(`^import\s+(?:static\s+)?([\w.]+)(\.\*)?;`)

func parseJavaImport(text string, line int) []model.ImportRecord {
	m := reJavaImport.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil
	}
	full := m[1]
	name := full
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		name = full[idx+1:]
	}
	if m[2] != "" {
		name = "*"
	}
	return []model.ImportRecord{{Name: name, SourceModule: full, IsExternal: true, LineNumber: line}}
}

var reRustUse = regexp.MustCompile(`^use\s+([\w:]+)(?:::\{([^}]*)\})?(?:\s+as\s+(\w+))?;?`)

func parseRustImport(text string, line int) []model.ImportRecord {
	m := reRustUse.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil
	}
	base := strings.ReplaceAll(m[1], "::", ".")
	if m[2] != "" {
		var out []model.ImportRecord
		for _, part := range strings.Split(m[2], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, model.ImportRecord{Name: part, SourceModule: base, IsExternal: true, LineNumber: line})
		}
		return out
	}
	segs := strings.Split(base, ".")
	name := segs[len(segs)-1]
	alias := m[3]
	return []model.ImportRecord{{Name: name, Alias: alias, SourceModule: base, IsExternal: true, LineNumber: line}}
}

var reCppInclude = regexp.MustCompile(`^#include\s+[<"]([^>"]+)[>"]`)

func parseCppImport(text string, line int) []model.ImportRecord {
	m := reCppInclude.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil
	}
	path := m[1]
	segs := strings.Split(path, "/")
	name := segs[len(segs)-1]
	return []model.ImportRecord{{Name: name, SourceModule: path, IsExternal: !strings.HasPrefix(text, `#include "`), LineNumber: line}}
}
