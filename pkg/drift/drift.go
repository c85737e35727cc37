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

// Package drift implements the LLM-based documentation drift detector:
// given a document chunk and the code entity it claims to describe, ask
// the LLM whether the documentation still matches the code, and persist
// the verdict.
package drift

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/kraklabs/lattice/pkg/llm"
	"github.com/kraklabs/lattice/pkg/model"
)

const (
	docContentMax  = 3000
	codeContentMax = 4000
	excerptLength  = 500
	maxTokens      = 1500
)

// Input describes one (document_chunk, entity) pair to check for drift.
type Input struct {
	ChunkID     string
	DocPath     string
	EntityQN    string
	EntityKind  string
	FilePath    string
	HeadingPath []string
	DocContent  string
	CodeContent string
	CodeHash    string
	Language    model.Language
}

// Detector renders the drift prompt, calls the LLM provider under a
// shared semaphore, and parses its JSON verdict.
type Detector struct {
	provider llm.Provider
	sem      *semaphore.Weighted
	retry    llm.RetryConfig
	logger   *slog.Logger
}

// New creates a Detector bound to sem, the process-wide API semaphore.
func New(provider llm.Provider, sem *semaphore.Weighted, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{provider: provider, sem: sem, retry: llm.DefaultRetryConfig(), logger: logger}
}

// Analyze returns nil, nil when the documentation is not relevant to the
// entity, or a *model.DriftAnalysis otherwise. A permanent LLM failure
// also returns nil, nil — the drift detector never aborts the pipeline.
func (d *Detector) Analyze(ctx context.Context, in Input) (*model.DriftAnalysis, error) {
	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return nil, nil
		}
		defer d.sem.Release(1)
	}

	prompt := renderDriftPrompt(in)

	resp, err := llm.ChatWithRetry(ctx, d.provider, llm.ChatRequest{
		MaxTokens: maxTokens,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
	}, d.retry, d.logger)
	if err != nil {
		d.logger.Warn("drift: permanent LLM failure, skipping pair", "entity_qn", in.EntityQN, "err", err)
		return nil, nil
	}

	parsed := parseDriftResponse(resp.Message.Content)
	if !parsed.Relevant {
		return nil, nil
	}

	severity := severityFromVerdict(parsed.DriftSeverity)
	score := parsed.DriftScore
	if !parsed.DriftDetected {
		severity = model.SeverityNone
		score = 0
	}

	docExcerpt := truncate(in.DocContent, excerptLength)
	codeExcerpt := truncate(in.CodeContent, excerptLength)

	return &model.DriftAnalysis{
		ChunkID:         in.ChunkID,
		DocPath:         in.DocPath,
		EntityQN:        in.EntityQN,
		Trigger:         "manual",
		DriftDetected:   parsed.DriftDetected,
		DriftSeverity:   severity,
		DriftScore:      score,
		Issues:          parsed.Issues,
		Explanation:     parsed.Summary,
		DocExcerpt:      docExcerpt,
		CodeExcerpt:     codeExcerpt,
		DocVersionHash:  model.HashContent([]byte(in.DocContent)),
		CodeVersionHash: in.CodeHash,
	}, nil
}

func severityFromVerdict(s string) model.DriftSeverity {
	switch strings.ToLower(s) {
	case "minor":
		return model.SeverityMinor
	case "major":
		return model.SeverityMajor
	default:
		return model.SeverityNone
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func renderDriftPrompt(in Input) string {
	heading := "Document"
	if len(in.HeadingPath) > 0 {
		heading = strings.Join(in.HeadingPath, " > ")
	}
	var b strings.Builder
	b.WriteString("You check whether documentation still matches the code it describes. Be conservative: only report drift you can support with an exact quote from both the doc and the code.\n\n")
	fmt.Fprintf(&b, "## Documentation section: %s\n%s\n\n", heading, truncate(in.DocContent, docContentMax))
	fmt.Fprintf(&b, "## Code: %s (%s) in %s\n```%s\n%s\n```\n\n", in.EntityQN, in.EntityKind, in.FilePath, in.Language, truncate(in.CodeContent, codeContentMax))
	b.WriteString("First decide whether the section specifically documents this entity's behavior; if it only mentions the entity in passing or is about something else, relevant is false.\n")
	b.WriteString("Flag drift only for: a stated value that differs from the code, a documented signature that differs from the code's actual parameters, or a documented feature with no corresponding implementation at all. Do not flag undocumented extras, internal details, ordering differences, or missing docs for private members.\n\n")
	b.WriteString(`Respond with JSON only: {"relevant": bool, "drift_detected": bool, "drift_severity": "none"|"minor"|"major", "drift_score": 0.0-1.0, "issues": [{"description": "...", "doc_quote": "...", "code_quote": "..."}], "summary": "one sentence"}`)
	return b.String()
}

type driftVerdict struct {
	Relevant      bool              `json:"relevant"`
	DriftDetected bool              `json:"drift_detected"`
	DriftSeverity string            `json:"drift_severity"`
	DriftScore    float64           `json:"drift_score"`
	Issues        []model.DriftIssue `json:"issues"`
	Summary       string            `json:"summary"`
}

// parseDriftResponse parses the LLM's JSON verdict, tolerating a
// ```json fenced block or a bare ``` fence around it. An unparseable
// response degrades to a conservative "relevant but unclear" verdict
// rather than silently dropping the pair.
func parseDriftResponse(raw string) driftVerdict {
	jsonStr := raw
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		rest := raw[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			jsonStr = rest[:end]
		}
	} else if idx := strings.Index(raw, "```"); idx >= 0 {
		rest := raw[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			jsonStr = rest[:end]
		}
	}

	var v driftVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(jsonStr)), &v); err != nil {
		lower := strings.ToLower(raw)
		detected := strings.Contains(lower, "drift_detected") && strings.Contains(lower, "true")
		score := 0.0
		if detected {
			score = 0.5
		}
		return driftVerdict{
			Relevant:      true,
			DriftDetected: detected,
			DriftSeverity: "unknown",
			DriftScore:    score,
			Summary:       "could not parse a detailed analysis",
		}
	}
	return v
}
