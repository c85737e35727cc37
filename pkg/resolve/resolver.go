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

// Package resolve implements the call resolver: the strategy ladder that
// turns a raw call-site string into a resolved (kind, QN) using the
// symbol registry, import processor, inheritance tracker, and the
// per-function type map.
package resolve

import (
	"strings"

	"github.com/kraklabs/lattice/pkg/model"
	"github.com/kraklabs/lattice/pkg/symbols"
)

// UnresolvedCall is the input to the resolver: a raw call-site string
// plus the context needed to resolve it.
type UnresolvedCall struct {
	RawCall        string
	CallerQN       string
	CallerModuleQN string
	ClassContext   string // class QN, empty if the caller is a free function
	Language       model.Language
	LocalTypes     symbols.TypeMap
}

// Resolution is the outcome of resolving one call site.
type Resolution struct {
	Resolved bool
	Kind     string // "function" | "method" | "builtin"
	QN       string
	IsBuiltin bool
}

// Resolver applies the fixed strategy ladder. One Resolver instance is
// built per pipeline run and shared (read-only during call resolution)
// across every file.
type Resolver struct {
	registry    *symbols.Registry
	imports     *symbols.ImportProcessor
	inheritance *symbols.InheritanceTracker
	builtins    map[model.Language]map[string]bool
	cppOperators map[string]string
}

// New creates a Resolver over the registry/import-processor/inheritance
// tracker built during parsing.
func New(reg *symbols.Registry, imp *symbols.ImportProcessor, inh *symbols.InheritanceTracker) *Resolver {
	return &Resolver{
		registry:     reg,
		imports:      imp,
		inheritance:  inh,
		builtins:     defaultBuiltins(),
		cppOperators: defaultCppOperators(),
	}
}

// Resolve applies strategies 1-8 in order and returns the first whose QN
// is in the registry (or, for strategies 3 and 7, a synthetic builtin QN). If
// every strategy fails the raw string is preserved as the callee name by
// the caller (see the graph writer's unresolved-edge handling).
func (r *Resolver) Resolve(call UnresolvedCall) Resolution {
	strategies := []func(UnresolvedCall) (Resolution, bool){
		r.iife,
		r.superCall,
		r.cppOperator,
		r.methodChain,
		r.directImport,
		r.sameModule,
		r.languageBuiltin,
		r.fallbackBySimpleName,
	}
	for _, s := range strategies {
		if res, ok := s(call); ok {
			return res
		}
	}
	return Resolution{Resolved: false}
}

func (r *Resolver) lookup(qn string) (Resolution, bool) {
	if kind, ok := r.registry.Get(qn); ok {
		return Resolution{Resolved: true, Kind: kind, QN: qn}, true
	}
	return Resolution{}, false
}

// 1. IIFE form (JS/TS).
func (r *Resolver) iife(call UnresolvedCall) (Resolution, bool) {
	if call.Language != model.LangJavaScript && call.Language != model.LangTypeScript &&
		call.Language != model.LangJSX && call.Language != model.LangTSX {
		return Resolution{}, false
	}
	if !strings.HasPrefix(call.RawCall, "iife_func_") && !strings.HasPrefix(call.RawCall, "iife_arrow_") {
		return Resolution{}, false
	}
	return r.lookup(call.CallerModuleQN + "." + call.RawCall)
}

// 2. super-call.
func (r *Resolver) superCall(call UnresolvedCall) (Resolution, bool) {
	raw := call.RawCall
	if raw != "super" && raw != "super()" && !strings.HasPrefix(raw, "super().") && !strings.HasPrefix(raw, "super.") {
		return Resolution{}, false
	}
	if call.ClassContext == "" {
		return Resolution{}, false
	}
	method := ""
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		rest := raw[idx+1:]
		method = strings.TrimSuffix(rest, "()")
	}
	if method == "" {
		method = "__init__"
	}
	mro := r.inheritance.MRO(call.ClassContext)
	for _, ancestorQN := range mro {
		if ancestorQN == call.ClassContext {
			continue
		}
		if res, ok := r.lookup(ancestorQN + "." + method); ok {
			return res, true
		}
		if method == "__init__" {
			if res, ok := r.lookup(ancestorQN + ".constructor"); ok {
				return res, true
			}
		}
	}
	return Resolution{}, false
}

// 3. C++ operator overload.
func (r *Resolver) cppOperator(call UnresolvedCall) (Resolution, bool) {
	if call.Language != model.LangCPP {
		return Resolution{}, false
	}
	if canonical, ok := r.cppOperators[call.RawCall]; ok {
		return Resolution{Resolved: true, Kind: "builtin", QN: "builtin." + canonical, IsBuiltin: true}, true
	}
	if !strings.HasPrefix(call.RawCall, "operator") {
		return Resolution{}, false
	}
	// unknown operator form: resolve as simple name, preferring same-module
	return r.sameModule(call)
}

// 4. Method chain.
func (r *Resolver) methodChain(call UnresolvedCall) (Resolution, bool) {
	raw := call.RawCall
	closeParen := strings.Index(raw, ").")
	if closeParen < 0 {
		return Resolution{}, false
	}
	lastDot := strings.LastIndex(raw, ".")
	if lastDot <= closeParen {
		return Resolution{}, false
	}
	receiverExpr := raw[:lastDot]
	method := raw[lastDot+1:]
	method = strings.TrimSuffix(method, "()")

	receiverType, ok := r.inferReceiverType(receiverExpr, call)
	if !ok {
		return Resolution{}, false
	}
	if res, ok := r.lookup(receiverType + "." + method); ok {
		return res, true
	}
	for _, ancestorQN := range r.inheritance.MRO(receiverType) {
		if res, ok := r.lookup(ancestorQN + "." + method); ok {
			return res, true
		}
	}
	return Resolution{}, false
}

// inferReceiverType resolves the type of a (possibly chained) receiver
// expression, per §4.6's "chained calls" rule: first via the local type
// map (assigned variables), and — since a bare `Name(...)` call's return
// type is Name itself when Name is a known class — falling back to
// resolving the innermost call's base identifier as a constructor call.
// Bounded recursion guard against pathological chains.
func (r *Resolver) inferReceiverType(expr string, call UnresolvedCall) (string, bool) {
	types := call.LocalTypes
	const maxDepth = 8
	for depth := 0; depth < maxDepth; depth++ {
		if t, ok := types[expr]; ok {
			return t, true
		}
		closeParen := strings.LastIndex(expr, ")")
		if closeParen < 0 {
			return r.classFromBase(expr, call)
		}
		openParen := strings.LastIndex(expr[:closeParen], "(")
		if openParen < 0 {
			return r.classFromBase(expr, call)
		}
		prevDot := strings.LastIndex(expr[:openParen], ".")
		if prevDot < 0 {
			base := expr[:openParen]
			if t, ok := types[base]; ok {
				return t, true
			}
			return r.classFromBase(base, call)
		}
		expr = expr[:prevDot]
	}
	return "", false
}

// classFromBase resolves a bare identifier as a constructor call whose
// return type is the class itself, trying a direct-import hit before a
// same-module lookup.
func (r *Resolver) classFromBase(base string, call UnresolvedCall) (string, bool) {
	if base == "" {
		return "", false
	}
	if qn, ok := r.imports.Lookup(call.CallerModuleQN, base); ok {
		if kind, ok := r.registry.Get(qn); ok && kind == "class" {
			return qn, true
		}
	}
	same := call.CallerModuleQN + "." + base
	if kind, ok := r.registry.Get(same); ok && kind == "class" {
		return same, true
	}
	return "", false
}

// 5. Direct import hit.
func (r *Resolver) directImport(call UnresolvedCall) (Resolution, bool) {
	raw := call.RawCall
	first := raw
	rest := ""
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		first = raw[:idx]
		rest = raw[idx+1:]
	}

	var target string
	if qn, ok := r.imports.Lookup(call.CallerModuleQN, raw); ok {
		target = qn
	} else if qn, ok := r.imports.Lookup(call.CallerModuleQN, first); ok {
		target = qn
		if rest != "" {
			target += "." + rest
		}
	} else {
		return Resolution{}, false
	}

	if res, ok := r.lookup(target); ok {
		return res, true
	}
	for _, ancestorQN := range r.inheritance.MRO(target) {
		if res, ok := r.lookup(ancestorQN); ok {
			return res, true
		}
	}
	return Resolution{}, false
}

// 6. Same-module.
func (r *Resolver) sameModule(call UnresolvedCall) (Resolution, bool) {
	first := call.RawCall
	if idx := strings.IndexByte(first, '.'); idx >= 0 {
		first = first[:idx]
	}
	return r.lookup(call.CallerModuleQN + "." + first)
}

// 7. Language builtins.
func (r *Resolver) languageBuiltin(call UnresolvedCall) (Resolution, bool) {
	set, ok := r.builtins[call.Language]
	if !ok {
		return Resolution{}, false
	}
	name := call.RawCall
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSuffix(name, "()")
	if !set[name] {
		return Resolution{}, false
	}
	return Resolution{Resolved: true, Kind: "builtin", QN: "builtin." + name, IsBuiltin: true}, true
}

// 8. Fallback by simple name.
func (r *Resolver) fallbackBySimpleName(call UnresolvedCall) (Resolution, bool) {
	last := call.RawCall
	if idx := strings.LastIndex(last, "."); idx >= 0 {
		last = last[idx+1:]
	}
	last = strings.TrimSuffix(last, "()")
	candidates := r.registry.FindBySimpleName(last)
	if len(candidates) == 0 {
		return Resolution{}, false
	}
	best := candidates[0]
	bestDist := distance(call.CallerModuleQN, best)
	for _, c := range candidates[1:] {
		d := distance(call.CallerModuleQN, c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return r.lookup(best)
}

// distance scores how far apart two dotted paths are: shared prefix
// length subtracted from a base cost, with a bonus (cost reduction) when
// the candidate lives under the caller's module.
func distance(callerModuleQN, candidateQN string) int {
	callerSegs := strings.Split(callerModuleQN, ".")
	candSegs := strings.Split(candidateQN, ".")
	shared := 0
	for shared < len(callerSegs) && shared < len(candSegs) && callerSegs[shared] == candSegs[shared] {
		shared++
	}
	cost := (len(callerSegs) - shared) + (len(candSegs) - shared)
	if strings.HasPrefix(candidateQN, callerModuleQN+".") {
		cost -= 1
	}
	return cost
}
