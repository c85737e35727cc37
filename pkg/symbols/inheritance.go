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

import "sync"

// InheritanceTracker maps a class QN to its ordered list of parent
// QNs-or-raw-names, as declared. mro() performs a BFS over resolved
// parents; unresolved parent strings are ignored for lookup purposes but
// preserved in Parents().
type InheritanceTracker struct {
	mu      sync.RWMutex
	parents map[string][]string
	reg     *Registry
}

// NewInheritanceTracker creates a tracker that consults reg to tell
// resolved parent QNs from raw (unresolved) names.
func NewInheritanceTracker(reg *Registry) *InheritanceTracker {
	return &InheritanceTracker{parents: make(map[string][]string), reg: reg}
}

// Register records classQN's parents in declaration order.
func (t *InheritanceTracker) Register(classQN string, parentQNsOrRaw []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parents[classQN] = append([]string(nil), parentQNsOrRaw...)
}

// Parents returns the raw declared parent list for classQN.
func (t *InheritanceTracker) Parents(classQN string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parents[classQN]
}

// MRO performs a BFS over resolved parent edges starting at classQN,
// returning classQN followed by its ancestors in breadth-first,
// duplicate-free order. A visited-set guards against circular
// inheritance (A extends B extends A), guaranteeing termination.
func (t *InheritanceTracker) MRO(classQN string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	visited := map[string]bool{classQN: true}
	order := []string{classQN}
	queue := []string{classQN}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, parent := range t.parents[cur] {
			if visited[parent] {
				continue
			}
			if _, known := t.reg.Get(parent); !known {
				continue // unresolved parent name, skip for lookup
			}
			visited[parent] = true
			order = append(order, parent)
			queue = append(queue, parent)
		}
	}
	return order
}

// Unregister removes classQN's recorded parent list.
func (t *InheritanceTracker) Unregister(classQN string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.parents, classQN)
}
