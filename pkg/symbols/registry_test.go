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
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()
	r.Register("proj.a.Foo", "class")

	kind, ok := r.Get("proj.a.Foo")
	require.True(t, ok)
	assert.Equal(t, "class", kind)

	_, ok = r.Get("proj.a.Bar")
	assert.False(t, ok)
}

func TestRegistry_Register_OverwritesKind(t *testing.T) {
	r := New()
	r.Register("proj.a.Foo", "function")
	r.Register("proj.a.Foo", "class")

	kind, ok := r.Get("proj.a.Foo")
	require.True(t, ok)
	assert.Equal(t, "class", kind)
}

func TestRegistry_Unregister_RemovesFromEveryIndex(t *testing.T) {
	r := New()
	r.Register("proj.a.Foo", "class")

	assert.True(t, r.Unregister("proj.a.Foo"))
	_, ok := r.Get("proj.a.Foo")
	assert.False(t, ok)
	assert.Empty(t, r.FindBySimpleName("Foo"))
	assert.Empty(t, r.FindWithPrefix("proj.a"))
}

func TestRegistry_Unregister_MissingQNReturnsFalse(t *testing.T) {
	r := New()
	assert.False(t, r.Unregister("proj.missing"))
}

func TestRegistry_FindBySimpleName_MultipleQNsSameLastSegment(t *testing.T) {
	r := New()
	r.Register("proj.a.run", "function")
	r.Register("proj.b.run", "function")
	r.Register("proj.c.Widget", "class")

	got := r.FindBySimpleName("run")
	sort.Strings(got)
	assert.Equal(t, []string{"proj.a.run", "proj.b.run"}, got)
}

func TestRegistry_FindEndingWith_SingleSegmentUsesSimpleIndex(t *testing.T) {
	r := New()
	r.Register("proj.a.run", "function")
	r.Register("proj.b.run", "function")

	got := r.FindEndingWith("run")
	sort.Strings(got)
	assert.Equal(t, []string{"proj.a.run", "proj.b.run"}, got)
}

func TestRegistry_FindEndingWith_DottedSuffixWalksMap(t *testing.T) {
	r := New()
	r.Register("proj.a.Widget.render", "method")
	r.Register("proj.b.Widget.render", "method")
	r.Register("proj.c.render", "function")

	got := r.FindEndingWith("Widget.render")
	sort.Strings(got)
	assert.Equal(t, []string{"proj.a.Widget.render", "proj.b.Widget.render"}, got)
}

func TestRegistry_FindWithPrefix_WalksTrieBySegment(t *testing.T) {
	r := New()
	r.Register("proj.a.Foo", "class")
	r.Register("proj.a.Bar", "class")
	r.Register("proj.b.Baz", "class")

	matches := r.FindWithPrefix("proj.a")
	qns := make([]string, 0, len(matches))
	for _, m := range matches {
		qns = append(qns, m.QN)
	}
	sort.Strings(qns)
	assert.Equal(t, []string{"proj.a.Bar", "proj.a.Foo"}, qns)
}

func TestRegistry_FindWithPrefix_UnknownPrefixReturnsNil(t *testing.T) {
	r := New()
	r.Register("proj.a.Foo", "class")
	assert.Nil(t, r.FindWithPrefix("proj.z"))
}

func TestRegistry_RemoveByPrefix_RemovesWholeSubtree(t *testing.T) {
	r := New()
	r.Register("proj.a.Foo", "class")
	r.Register("proj.a.Foo.method", "method")
	r.Register("proj.b.Bar", "class")

	n := r.RemoveByPrefix("proj.a")
	assert.Equal(t, 2, n)

	_, ok := r.Get("proj.a.Foo")
	assert.False(t, ok)
	_, ok = r.Get("proj.a.Foo.method")
	assert.False(t, ok)
	_, ok = r.Get("proj.b.Bar")
	assert.True(t, ok, "removing one prefix must not affect unrelated entries")
}

func TestRegistry_UnregisterThenReregister_TrieStaysConsistent(t *testing.T) {
	r := New()
	r.Register("proj.a.Foo", "class")
	r.Unregister("proj.a.Foo")
	r.Register("proj.a.Foo", "class")

	_, ok := r.Get("proj.a.Foo")
	assert.True(t, ok)
	matches := r.FindWithPrefix("proj.a")
	require.Len(t, matches, 1)
	assert.Equal(t, "proj.a.Foo", matches[0].QN)
}
