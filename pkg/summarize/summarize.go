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

// Package summarize renders the file/function/class prompt templates and
// drives the LLM provider to produce natural-language summaries, gated by
// a process-wide semaphore and retrying on rate limits with the same
// exponential back-off policy used across the pipeline's other LLM-backed
// stages.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/kraklabs/lattice/pkg/llm"
	"github.com/kraklabs/lattice/pkg/model"
)

// Summarizer renders prompts and calls an llm.Provider for file,
// function, and class summaries. Concurrency is bounded by a shared
// semaphore so the summarizer, link-finder, and drift detector never
// collectively exceed the configured API concurrency limit.
type Summarizer struct {
	provider llm.Provider
	sem      *semaphore.Weighted
	retry    llm.RetryConfig
	logger   *slog.Logger
}

// New creates a Summarizer bound to sem, the process-wide API semaphore
// shared with the link finder and drift detector.
func New(provider llm.Provider, sem *semaphore.Weighted, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{provider: provider, sem: sem, retry: llm.DefaultRetryConfig(), logger: logger}
}

// SummarizeFile renders the file-level prompt for a parsed file's path
// and top-level entity names.
func (s *Summarizer) SummarizeFile(ctx context.Context, relPath string, entityNames []string, excerpt string) string {
	prompt := renderFilePrompt(relPath, entityNames, excerpt)
	return s.complete(ctx, "file", relPath, prompt)
}

// SummarizeEntity renders the function or class prompt depending on
// entity.Kind.
func (s *Summarizer) SummarizeEntity(ctx context.Context, entity *model.CodeEntity) string {
	var prompt string
	switch entity.Kind {
	case model.KindClass:
		prompt = renderClassPrompt(entity)
	default:
		prompt = renderFunctionPrompt(entity)
	}
	return s.complete(ctx, string(entity.Kind), entity.QualifiedName, prompt)
}

// complete acquires the shared semaphore, calls the LLM provider with
// retry on rate limits, and returns an empty string (never an error) on
// permanent failure, per the summarizer's "never fatal" contract.
func (s *Summarizer) complete(ctx context.Context, kind, subject, prompt string) string {
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.logger.Warn("summarize: semaphore acquire canceled", "kind", kind, "subject", subject, "err", err)
			return ""
		}
		defer s.sem.Release(1)
	}

	resp, err := llm.ChatWithRetry(ctx, s.provider, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: summarizerSystemPrompt},
			{Role: "user", Content: prompt},
		},
	}, s.retry, s.logger)
	if err != nil {
		s.logger.Warn("summarize: permanent failure, emitting empty summary", "kind", kind, "subject", subject, "err", err)
		return ""
	}
	return strings.TrimSpace(resp.Message.Content)
}

const summarizerSystemPrompt = "You write terse, accurate one-paragraph summaries of source code for a code search index. Do not restate the code; describe its purpose and behavior."

func renderFilePrompt(relPath string, entityNames []string, excerpt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the purpose of the file %q.\n", relPath)
	if len(entityNames) > 0 {
		fmt.Fprintf(&b, "It defines: %s.\n", strings.Join(entityNames, ", "))
	}
	if excerpt != "" {
		b.WriteString("Excerpt:\n")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}
	b.WriteString("Respond with one paragraph, no preamble.")
	return b.String()
}

func renderFunctionPrompt(e *model.CodeEntity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize what the %s %q does.\n", e.Kind, e.QualifiedName)
	if e.Signature != "" {
		fmt.Fprintf(&b, "Signature: %s\n", e.Signature)
	}
	if e.Docstring != "" {
		fmt.Fprintf(&b, "Existing docstring: %s\n", e.Docstring)
	}
	b.WriteString("Body:\n")
	b.WriteString(e.Code)
	b.WriteString("\nRespond with one or two sentences, no preamble.")
	return b.String()
}

func renderClassPrompt(e *model.CodeEntity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the responsibility of the class %q.\n", e.QualifiedName)
	if len(e.BaseClasses) > 0 {
		fmt.Fprintf(&b, "It extends: %s.\n", strings.Join(e.BaseClasses, ", "))
	}
	methodNames := make([]string, 0, len(e.Children))
	for _, c := range e.Children {
		methodNames = append(methodNames, c.Name)
	}
	if len(methodNames) > 0 {
		fmt.Fprintf(&b, "Its methods: %s.\n", strings.Join(methodNames, ", "))
	}
	if e.Docstring != "" {
		fmt.Fprintf(&b, "Existing docstring: %s\n", e.Docstring)
	}
	b.WriteString("Respond with one or two sentences, no preamble.")
	return b.String()
}
