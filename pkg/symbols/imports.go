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
	"path/filepath"
	"strings"

	"github.com/kraklabs/lattice/pkg/model"
)

// ImportProcessor builds per-module import_mapping[module_qn][local_name]
// = target_qn from a file's ImportRecords. One instance is shared by a
// whole pipeline run across every file.
type ImportProcessor struct {
	project  string
	mappings map[string]map[string]string // module_qn -> local_name -> target_qn
	modules  map[string]bool              // known project module QNs
}

// NewImportProcessor creates an ImportProcessor scoped to one project.
func NewImportProcessor(project string) *ImportProcessor {
	return &ImportProcessor{
		project:  project,
		mappings: make(map[string]map[string]string),
		modules:  make(map[string]bool),
	}
}

// RegisterModule records moduleQN as an existing module in the project
// tree. resolveModule consults this before falling back to its
// string-shape heuristic, so a single-segment source like "a" resolves
// internally when the project actually has a top-level module "a" (e.g.
// a file a.py), which the shape heuristic alone cannot tell apart from a
// bare external package name.
func (p *ImportProcessor) RegisterModule(moduleQN string) {
	p.modules[moduleQN] = true
}

// Process registers the import mapping for one module, dispatching to the
// per-language rule set.
func (p *ImportProcessor) Process(moduleQN string, relativePath string, lang model.Language, imports []model.ImportRecord) {
	mapping := make(map[string]string, len(imports))
	for _, imp := range imports {
		switch lang {
		case model.LangPython:
			p.applyPython(mapping, moduleQN, imp)
		default:
			p.applyPathBased(mapping, moduleQN, relativePath, imp)
		}
	}
	p.mappings[moduleQN] = mapping
}

// applyPython implements the import rules: `import a.b` -> {'a':
// resolved('a.b')}; `from a.b import c as d` -> {'d':
// resolved('a.b').c}; `from . import x` climbs moduleQN by the leading
// dot count; wildcard imports store '*source' -> source.
func (p *ImportProcessor) applyPython(mapping map[string]string, moduleQN string, imp model.ImportRecord) {
	source := imp.SourceModule
	leadingDots := 0
	for leadingDots < len(source) && source[leadingDots] == '.' {
		leadingDots++
	}
	if leadingDots > 0 {
		rest := source[leadingDots:]
		base := climb(moduleQN, leadingDots)
		if rest != "" {
			source = base + "." + rest
		} else {
			source = base
		}
	}

	resolved, external := p.resolveModule(source)

	if imp.Name == "*" {
		mapping["*"+source] = resolved
		return
	}

	local := imp.Alias
	if local == "" {
		local = imp.Name
	}

	if imp.Name == "" {
		// plain `import a.b` form: bind the first segment of the dotted path
		first := strings.SplitN(imp.SourceModule, ".", 2)[0]
		mapping[first] = resolved
		return
	}
	mapping[local] = resolved + "." + imp.Name
	_ = external
}

// applyPathBased implements default/named/namespace/require-style
// imports used by JS/TS and other path-based languages: relative module
// specifiers resolve against the importing file's own path.
func (p *ImportProcessor) applyPathBased(mapping map[string]string, moduleQN, relativePath string, imp model.ImportRecord) {
	source := imp.SourceModule
	local := imp.Alias
	if local == "" {
		local = imp.Name
	}
	if strings.HasPrefix(source, ".") {
		dir := filepath.ToSlash(filepath.Dir(relativePath))
		joined := filepath.ToSlash(filepath.Join(dir, source))
		joined = strings.TrimSuffix(joined, filepath.Ext(joined))
		mapping[local] = p.project + "." + strings.ReplaceAll(strings.Trim(joined, "/"), "/", ".")
		return
	}
	resolved, _ := p.resolveModule(source)
	if imp.Name != "" && imp.Name != "default" {
		mapping[local] = resolved + "." + imp.Name
	} else {
		mapping[local] = resolved
	}
}

// resolveModule resolves a module string to a QN: if it resolves inside
// the project tree, project.<dotted path>; otherwise the string itself,
// marked external.
func (p *ImportProcessor) resolveModule(source string) (qn string, external bool) {
	if source == "" {
		return p.project, false
	}
	if strings.HasPrefix(source, p.project+".") || source == p.project {
		return source, false
	}
	candidate := p.project + "." + source
	if p.modules[candidate] {
		return candidate, false
	}
	// Heuristic: module paths that look like project-relative dotted
	// paths (no registered third-party prefix) resolve inside the tree.
	if !looksExternal(source) {
		return candidate, false
	}
	return source, true
}

func (p *ImportProcessor) resolveImportTarget(name string, external bool) string {
	if external {
		return name
	}
	return p.project + "." + name
}

func looksExternal(source string) bool {
	// A bare package name with no dots (e.g. "os", "react") is treated as
	// an external/stdlib module; a dotted path is treated as an internal
	// project-relative module. This mirrors the common case for both
	// Python (stdlib modules are typically undotted at the import site)
	// and JS/TS (bare specifiers resolve to node_modules).
	return !strings.Contains(source, "/") && !strings.Contains(source, ".")
}

// climb strips n trailing segments from qn (used for `from . import x`
// style relative imports, climbing by the leading-dot count).
func climb(qn string, n int) string {
	segs := strings.Split(qn, ".")
	// A module's QN includes its own trailing segment (e.g. "proj.b" for
	// module b.py), so even a single leading dot ("from . import x") must
	// climb past that segment to reach the containing package; n itself is
	// the climb count, not n-1.
	climbCount := n
	if climbCount >= len(segs) {
		climbCount = len(segs) - 1
	}
	if climbCount > 0 {
		segs = segs[:len(segs)-climbCount]
	}
	return strings.Join(segs, ".")
}

// Lookup returns the resolved target QN for localName as imported by
// moduleQN, if any.
func (p *ImportProcessor) Lookup(moduleQN, localName string) (string, bool) {
	m, ok := p.mappings[moduleQN]
	if !ok {
		return "", false
	}
	qn, ok := m[localName]
	return qn, ok
}

// Mapping returns the full local_name -> target_qn mapping for moduleQN.
func (p *ImportProcessor) Mapping(moduleQN string) map[string]string {
	return p.mappings[moduleQN]
}
