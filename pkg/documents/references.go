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

package documents

import (
	"regexp"
	"strings"

	"github.com/kraklabs/lattice/pkg/model"
)

// ExplicitReference is one candidate reference string matched against
// the known entity QN set.
type ExplicitReference struct {
	Text        string
	EntityQN    string
	PatternType string
	Confidence  float64
}

var explicitPatterns = []struct {
	name       string
	re         *regexp.Regexp
	confidence float64
}{
	{"backtick_qualified", regexp.MustCompile("`([A-Za-z_][A-Za-z0-9_]*(?:\\.[A-Za-z_][A-Za-z0-9_]*)+)`"), 0.90},
	{"backtick_simple", regexp.MustCompile("`([A-Za-z_][A-Za-z0-9_]*)`"), 0.80},
	{"class_name", regexp.MustCompile(`\b([A-Z][a-z]+(?:[A-Z][a-z]+)+)\b`), 0.60},
	{"function_call", regexp.MustCompile(`\b([a-z_][a-z0-9_]*)\s*\(`), 0.50},
}

var codeBlockPatterns = []struct {
	name       string
	re         *regexp.Regexp
	confidence float64
}{
	{"python_def", regexp.MustCompile(`(?:def|async def)\s+([A-Za-z_][A-Za-z0-9_]*)`), 0.95},
	{"python_class", regexp.MustCompile(`class\s+([A-Za-z_][A-Za-z0-9_]*)`), 0.95},
	{"js_function", regexp.MustCompile(`function\s+([A-Za-z_][A-Za-z0-9_]*)`), 0.95},
}

var codeFenceRe = regexp.MustCompile("(?s)```.*?```")

// ExtractExplicitReferences scans content (inline text and fenced code
// blocks) for candidate reference strings and matches each against
// knownEntities using three patterns: exact QN, suffix match, and
// two-segment suffix match. Duplicates keyed by entity QN keep the
// highest confidence.
func ExtractExplicitReferences(content string, knownEntities map[string]bool) []ExplicitReference {
	best := make(map[string]ExplicitReference)
	record := func(ref ExplicitReference) {
		if existing, ok := best[ref.EntityQN]; !ok || ref.Confidence > existing.Confidence {
			best[ref.EntityQN] = ref
		}
	}

	for _, block := range codeFenceRe.FindAllString(content, -1) {
		for _, p := range codeBlockPatterns {
			for _, m := range p.re.FindAllStringSubmatch(block, -1) {
				if qn, ok := matchEntity(m[1], knownEntities); ok {
					record(ExplicitReference{Text: m[1], EntityQN: qn, PatternType: p.name, Confidence: p.confidence})
				}
			}
		}
	}

	for _, p := range explicitPatterns {
		for _, m := range p.re.FindAllStringSubmatch(content, -1) {
			if qn, ok := matchEntity(m[1], knownEntities); ok {
				record(ExplicitReference{Text: m[1], EntityQN: qn, PatternType: p.name, Confidence: p.confidence})
			}
		}
	}

	out := make([]ExplicitReference, 0, len(best))
	for _, ref := range best {
		out = append(out, ref)
	}
	return out
}

// matchEntity applies the three-pattern match: exact QN, trailing
// simple-name suffix, and two-segment suffix (parent.child).
func matchEntity(text string, knownEntities map[string]bool) (string, bool) {
	if knownEntities[text] {
		return text, true
	}
	for entity := range knownEntities {
		parts := strings.Split(entity, ".")
		if parts[len(parts)-1] == text {
			return entity, true
		}
		if len(parts) >= 2 && parts[len(parts)-2]+"."+parts[len(parts)-1] == text {
			return entity, true
		}
	}
	return "", false
}

// ToDocumentLinks converts explicit references into DocumentLink rows
// for chunkID.
func ToDocumentLinks(chunkID string, refs []ExplicitReference) []model.DocumentLink {
	out := make([]model.DocumentLink, 0, len(refs))
	for _, r := range refs {
		out = append(out, model.DocumentLink{
			ChunkID:    chunkID,
			EntityQN:   r.EntityQN,
			LinkType:   model.LinkExplicit,
			Confidence: r.Confidence,
		})
	}
	return out
}
