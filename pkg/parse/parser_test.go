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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/resolve"
	"github.com/kraklabs/lattice/pkg/symbols"
)

func writeTemp(t *testing.T, dir, name, content string) model.FileInfo {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	lang, ok := model.ExtensionLanguages[filepath.Ext(name)]
	require.True(t, ok, "unsupported extension for %s", name)
	return model.FileInfo{AbsolutePath: path, RelativePath: name, Language: lang}
}

func TestParseFile_PythonClassAndFunction(t *testing.T) {
	dir := t.TempDir()
	src := `class Foo:
    """a foo."""

    def bar(self):
        return 1


def top():
    pass
`
	fi := writeTemp(t, dir, "a.py", src)

	p := New(nil)
	res, err := p.ParseFile(context.Background(), "proj", fi)
	require.NoError(t, err)

	require.Len(t, res.File.Entities, 2)

	class := res.File.Entities[0]
	assert.Equal(t, model.KindClass, class.Kind)
	assert.Equal(t, "Foo", class.Name)
	assert.Equal(t, "proj.a.Foo", class.QualifiedName)
	assert.Equal(t, "a foo.", class.Docstring)
	require.Len(t, class.Children, 1)

	method := class.Children[0]
	assert.Equal(t, model.KindMethod, method.Kind)
	assert.Equal(t, "proj.a.Foo.bar", method.QualifiedName)
	assert.Equal(t, "proj.a.Foo", method.ParentClassQN)
	assert.False(t, method.IsClassMethod)

	fn := res.File.Entities[1]
	assert.Equal(t, model.KindFunction, fn.Kind)
	assert.Equal(t, "proj.a.top", fn.QualifiedName)

	_, ok := res.FuncMeta["proj.a.Foo.bar"]
	assert.True(t, ok)
}

func TestParseFile_PythonImports(t *testing.T) {
	dir := t.TempDir()
	src := `import os
from a import Foo
from . import sibling
from .pkg import thing as renamed

def g():
    pass
`
	fi := writeTemp(t, dir, "b.py", src)

	p := New(nil)
	res, err := p.ParseFile(context.Background(), "proj", fi)
	require.NoError(t, err)

	var names []string
	for _, imp := range res.File.Imports {
		names = append(names, imp.Name+"|"+imp.SourceModule+"|"+imp.Alias)
	}
	assert.Contains(t, names, "|os|")
	assert.Contains(t, names, "Foo|a|")
	assert.Contains(t, names, "sibling|.|")
	assert.Contains(t, names, "thing|.pkg|renamed")
}

// TestEndToEnd_PythonCallResolution mirrors a two-file project: a.py
// defines class Foo with method bar; b.py imports Foo and calls
// Foo().bar() from inside a function. The call should resolve to
// proj.a.Foo.bar via the direct-import and method-chain strategies.
func TestEndToEnd_PythonCallResolution(t *testing.T) {
	dir := t.TempDir()
	aSrc := `class Foo:
    def bar(self):
        return 1
`
	bSrc := `from a import Foo

def g():
    Foo().bar()
`
	aFI := writeTemp(t, dir, "a.py", aSrc)
	bFI := writeTemp(t, dir, "b.py", bSrc)

	p := New(nil)
	aRes, err := p.ParseFile(context.Background(), "proj", aFI)
	require.NoError(t, err)
	bRes, err := p.ParseFile(context.Background(), "proj", bFI)
	require.NoError(t, err)

	reg := symbols.New()
	inh := symbols.NewInheritanceTracker(reg)
	imp := symbols.NewImportProcessor("proj")

	for _, e := range aRes.File.Entities {
		registerEntity(reg, inh, e)
	}
	for _, e := range bRes.File.Entities {
		registerEntity(reg, inh, e)
	}

	aModuleQN := model.ModuleQN("proj", aFI.RelativePath)
	bModuleQN := model.ModuleQN("proj", bFI.RelativePath)
	imp.RegisterModule(aModuleQN)
	imp.RegisterModule(bModuleQN)
	imp.Process(aModuleQN, aFI.RelativePath, aFI.Language, aRes.File.Imports)
	imp.Process(bModuleQN, bFI.RelativePath, bFI.Language, bRes.File.Imports)

	require.Len(t, bRes.File.Entities, 1)
	g := bRes.File.Entities[0]
	require.Len(t, g.Calls, 2)
	assert.Equal(t, "Foo().bar()", g.Calls[0])

	meta := bRes.FuncMeta[g.QualifiedName]
	localTypes := symbols.InferLocalTypes(meta.Params, meta.Assignments, "", reg)

	r := resolve.New(reg, imp, inh)
	res := r.Resolve(resolve.UnresolvedCall{
		RawCall:        g.Calls[0],
		CallerQN:       g.QualifiedName,
		CallerModuleQN: bModuleQN,
		Language:       model.LangPython,
		LocalTypes:     localTypes,
	})

	require.True(t, res.Resolved)
	assert.Equal(t, "proj.a.Foo.bar", res.QN)
}

func registerEntity(reg *symbols.Registry, inh *symbols.InheritanceTracker, e *model.CodeEntity) {
	reg.Register(e.QualifiedName, string(e.Kind))
	if e.Kind == model.KindClass {
		inh.Register(e.QualifiedName, e.BaseClasses)
	}
	for _, c := range e.Children {
		registerEntity(reg, inh, c)
	}
}

func TestParseFile_UnsupportedLanguage(t *testing.T) {
	dir := t.TempDir()
	fi := model.FileInfo{AbsolutePath: filepath.Join(dir, "x.txt"), RelativePath: "x.txt", Language: model.Language("text")}
	p := New(nil)
	_, err := p.ParseFile(context.Background(), "proj", fi)
	require.Error(t, err)
}

func TestParseFile_GoFunctionAndImport(t *testing.T) {
	dir := t.TempDir()
	src := `package main

import "fmt"

func main() {
	fmt.Println("hi")
}
`
	fi := writeTemp(t, dir, "main.go", src)
	p := New(nil)
	res, err := p.ParseFile(context.Background(), "proj", fi)
	require.NoError(t, err)

	require.Len(t, res.File.Entities, 1)
	assert.Equal(t, "main", res.File.Entities[0].Name)
	require.Len(t, res.File.Imports, 1)
	assert.Equal(t, "fmt", res.File.Imports[0].Name)
	assert.True(t, res.File.Imports[0].IsExternal)
}

func TestParseFile_JavaScriptImportsAndCalls(t *testing.T) {
	dir := t.TempDir()
	src := `import { Foo, Bar as Baz } from "./local";
import React from "react";

function run() {
  new Foo().doThing();
}
`
	fi := writeTemp(t, dir, "run.js", src)
	p := New(nil)
	res, err := p.ParseFile(context.Background(), "proj", fi)
	require.NoError(t, err)

	var names []string
	for _, imp := range res.File.Imports {
		names = append(names, imp.Name+"|"+imp.Alias+"|"+imp.SourceModule)
	}
	assert.Contains(t, names, "Foo||./local")
	assert.Contains(t, names, "Bar|Baz|./local")
	assert.Contains(t, names, "default|React|react")

	require.Len(t, res.File.Entities, 1)
	fn := res.File.Entities[0]
	require.NotEmpty(t, fn.Calls)
}
