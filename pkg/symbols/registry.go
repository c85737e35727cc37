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

// Package symbols implements the process-scoped symbol registry, the
// per-language import processor, the class inheritance tracker, and the
// intra-procedural type inference engine used by the call resolver.
package symbols

import (
	"strings"
	"sync"
)

// trieNode is one segment of the dotted-qualified-name prefix trie.
type trieNode struct {
	children map[string]*trieNode
	qn       string
	kind     string
	isLeaf   bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

// Registry is the process-scoped registry of qualified names to entity
// kind, with O(1) exact lookup, O(1) simple-name lookup, and O(k)
// dotted-segment prefix lookup.
type Registry struct {
	mu         sync.RWMutex
	byQN       map[string]string            // qn -> kind
	bySimple   map[string]map[string]struct{} // simple name -> set of qn
	trie       *trieNode
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byQN:     make(map[string]string),
		bySimple: make(map[string]map[string]struct{}),
		trie:     newTrieNode(),
	}
}

// Register adds or updates qn -> kind, keeping the simple-name index and
// prefix trie consistent with the primary map.
func (r *Registry) Register(qn, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byQN[qn] = kind

	simple := lastSegment(qn)
	set, ok := r.bySimple[simple]
	if !ok {
		set = make(map[string]struct{})
		r.bySimple[simple] = set
	}
	set[qn] = struct{}{}

	node := r.trie
	for _, seg := range strings.Split(qn, ".") {
		child, ok := node.children[seg]
		if !ok {
			child = newTrieNode()
			node.children[seg] = child
		}
		node = child
	}
	node.isLeaf = true
	node.qn = qn
	node.kind = kind
}

// Unregister removes qn from every index. Returns true if qn was present.
func (r *Registry) Unregister(qn string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byQN[qn]; !ok {
		return false
	}
	delete(r.byQN, qn)

	simple := lastSegment(qn)
	if set, ok := r.bySimple[simple]; ok {
		delete(set, qn)
		if len(set) == 0 {
			delete(r.bySimple, simple)
		}
	}

	segs := strings.Split(qn, ".")
	node := r.trie
	path := make([]*trieNode, 0, len(segs)+1)
	path = append(path, node)
	for _, seg := range segs {
		child, ok := node.children[seg]
		if !ok {
			return true // trie already inconsistent-free; nothing to unwind
		}
		path = append(path, child)
		node = child
	}
	node.isLeaf = false
	node.qn = ""
	node.kind = ""
	// prune now-empty leaf chain
	for i := len(path) - 1; i > 0; i-- {
		n := path[i]
		if n.isLeaf || len(n.children) > 0 {
			break
		}
		parent := path[i-1]
		delete(parent.children, segs[i-1])
	}
	return true
}

// Get returns the kind registered for qn, if any.
func (r *Registry) Get(qn string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byQN[qn]
	return k, ok
}

// FindBySimpleName returns every QN whose last dotted segment equals s.
func (r *Registry) FindBySimpleName(s string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.bySimple[s]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for qn := range set {
		out = append(out, qn)
	}
	return out
}

// FindEndingWith returns every QN ending in suffix. When suffix is a
// single segment (no dot), this is O(1) via the simple-name index;
// otherwise it walks the primary map.
func (r *Registry) FindEndingWith(suffix string) []string {
	if !strings.Contains(suffix, ".") {
		return r.FindBySimpleName(suffix)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for qn := range r.byQN {
		if qn == suffix || strings.HasSuffix(qn, "."+suffix) {
			out = append(out, qn)
		}
	}
	return out
}

// PrefixMatch pairs a matched QN with its kind.
type PrefixMatch struct {
	QN   string
	Kind string
}

// FindWithPrefix returns every (qn, kind) whose dotted-segment path has p
// as a prefix, walking the trie in O(k) where k is the number of
// segments in p.
func (r *Registry) FindWithPrefix(p string) []PrefixMatch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node := r.trie
	if p != "" {
		for _, seg := range strings.Split(p, ".") {
			child, ok := node.children[seg]
			if !ok {
				return nil
			}
			node = child
		}
	}
	var out []PrefixMatch
	collectLeaves(node, &out)
	return out
}

func collectLeaves(n *trieNode, out *[]PrefixMatch) {
	if n.isLeaf {
		*out = append(*out, PrefixMatch{QN: n.qn, Kind: n.kind})
	}
	for _, c := range n.children {
		collectLeaves(c, out)
	}
}

// RemoveByPrefix unregisters every QN whose dotted path has p as a
// prefix. Returns the number removed.
func (r *Registry) RemoveByPrefix(p string) int {
	matches := r.FindWithPrefix(p)
	for _, m := range matches {
		r.Unregister(m.QN)
	}
	return len(matches)
}

func lastSegment(qn string) string {
	if idx := strings.LastIndex(qn, "."); idx >= 0 {
		return qn[idx+1:]
	}
	return qn
}
