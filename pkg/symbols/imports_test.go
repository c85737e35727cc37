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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lattice/pkg/model"
)

func TestClimb_SingleDotStripsOwnModuleSegment(t *testing.T) {
	assert.Equal(t, "proj", climb("proj.b", 1))
}

func TestClimb_TwoDotsClimbsOneMoreLevel(t *testing.T) {
	assert.Equal(t, "proj", climb("proj.pkg.b", 2))
}

func TestClimb_CannotClimbPastRoot(t *testing.T) {
	assert.Equal(t, "proj", climb("proj.b", 5))
}

// Regression: `from . import sibling` in module proj.b must resolve to
// proj.sibling (a child of the package containing b), not proj.b.sibling.
func TestImportProcessor_FromBareDot_ResolvesToContainingPackage(t *testing.T) {
	p := NewImportProcessor("proj")
	p.Process("proj.b", "b.py", model.LangPython, []model.ImportRecord{
		{SourceModule: ".", Name: "sibling"},
	})

	target, ok := p.Lookup("proj.b", "sibling")
	require.True(t, ok)
	assert.Equal(t, "proj.sibling", target)
}

// Regression: `from .pkg import thing as renamed` in module proj.b must
// resolve to proj.pkg.thing, not proj.b.pkg.thing.
func TestImportProcessor_FromDotPackage_ResolvesRelativeToContainingPackage(t *testing.T) {
	p := NewImportProcessor("proj")
	p.Process("proj.b", "b.py", model.LangPython, []model.ImportRecord{
		{SourceModule: ".pkg", Name: "thing", Alias: "renamed"},
	})

	target, ok := p.Lookup("proj.b", "renamed")
	require.True(t, ok)
	assert.Equal(t, "proj.pkg.thing", target)
}

func TestImportProcessor_AbsoluteImport_ResolvesInsideProjectTree(t *testing.T) {
	p := NewImportProcessor("proj")
	p.RegisterModule("proj.util")
	p.Process("proj.main", "main.py", model.LangPython, []model.ImportRecord{
		{SourceModule: "util", Name: "helper"},
	})

	target, ok := p.Lookup("proj.main", "helper")
	require.True(t, ok)
	assert.Equal(t, "proj.util.helper", target)
}

func TestImportProcessor_PlainDottedImport_BindsFirstSegment(t *testing.T) {
	p := NewImportProcessor("proj")
	p.Process("proj.main", "main.py", model.LangPython, []model.ImportRecord{
		{Name: "", SourceModule: "os.path"},
	})

	target, ok := p.Lookup("proj.main", "os")
	require.True(t, ok)
	assert.Equal(t, "proj.os.path", target)
}

func TestImportProcessor_WildcardImport_StoresSourcePrefixedKey(t *testing.T) {
	p := NewImportProcessor("proj")
	p.RegisterModule("proj.util")
	p.Process("proj.main", "main.py", model.LangPython, []model.ImportRecord{
		{SourceModule: "util", Name: "*"},
	})

	mapping := p.Mapping("proj.main")
	require.Contains(t, mapping, "*util")
	assert.Equal(t, "proj.util", mapping["*util"])
}

func TestImportProcessor_PathBasedRelativeImport_ResolvesAgainstImportingFile(t *testing.T) {
	p := NewImportProcessor("proj")
	p.Process("proj.src.app", "src/app.ts", model.LangTypeScript, []model.ImportRecord{
		{SourceModule: "./utils/format", Name: "formatDate"},
	})

	target, ok := p.Lookup("proj.src.app", "formatDate")
	require.True(t, ok)
	assert.Equal(t, "proj.src.utils.format", target)
}
