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

package pipeline

import (
	"sync"
	"time"
)

// Stage is one state in the orchestrator's state machine.
type Stage string

const (
	StageScanning     Stage = "scanning"
	StageParsing      Stage = "parsing"
	StageGraphBuild   Stage = "graph_building"
	StageSummarizing  Stage = "summarizing"
	StageMetadata     Stage = "metadata"
	StageEmbedding    Stage = "embedding"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// Event is one progress notification emitted onto a ProgressTracker's
// channel: either a stage transition (Detail empty) or an in-stage
// update (Detail set), or a terminal failure (Err set).
type Event struct {
	Stage     Stage
	Detail    string
	Err       error
	Timestamp time.Time
}

// ProgressTracker drives the orchestrator's state machine and fans every
// transition out onto a buffered channel a caller (CLI, tests) can drain.
// SetStage transitions; UpdateStage advances progress within the current
// stage without transitioning. failed is an absorbing state: once
// reached, further SetStage calls are ignored.
type ProgressTracker struct {
	mu     sync.Mutex
	stage  Stage
	err    error
	events chan Event
	now    func() time.Time
}

// NewProgressTracker creates a tracker with an event channel of the given
// capacity. Emitting never blocks: an event that finds the buffer full
// (with 0, any event no consumer is already waiting to receive) is
// dropped.
func NewProgressTracker(bufferSize int) *ProgressTracker {
	return &ProgressTracker{
		events: make(chan Event, bufferSize),
		now:    time.Now,
	}
}

// Events returns the read side of the tracker's event channel.
func (t *ProgressTracker) Events() <-chan Event {
	return t.events
}

// CurrentStage returns the current stage.
func (t *ProgressTracker) CurrentStage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// SetStage transitions to stage and emits an Event, unless the tracker
// has already failed.
func (t *ProgressTracker) SetStage(stage Stage) {
	t.mu.Lock()
	if t.stage == StageFailed {
		t.mu.Unlock()
		return
	}
	t.stage = stage
	t.mu.Unlock()
	t.emit(Event{Stage: stage, Timestamp: t.now()})
}

// UpdateStage emits a progress detail within the current stage, without
// transitioning.
func (t *ProgressTracker) UpdateStage(detail string) {
	t.mu.Lock()
	stage := t.stage
	t.mu.Unlock()
	t.emit(Event{Stage: stage, Detail: detail, Timestamp: t.now()})
}

// Fail transitions to the failed absorbing state and records err.
func (t *ProgressTracker) Fail(err error) {
	t.mu.Lock()
	t.stage = StageFailed
	t.err = err
	t.mu.Unlock()
	t.emit(Event{Stage: StageFailed, Err: err, Timestamp: t.now()})
}

// Err returns the error recorded by Fail, if any.
func (t *ProgressTracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close closes the event channel. Callers must stop draining Events()
// after Close.
func (t *ProgressTracker) Close() {
	close(t.events)
}

func (t *ProgressTracker) emit(e Event) {
	select {
	case t.events <- e:
	default:
		// Channel full with no consumer draining it; the orchestrator
		// itself must never block on progress reporting.
	}
}
