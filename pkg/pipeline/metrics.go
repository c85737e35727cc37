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

	"github.com/prometheus/client_golang/prometheus"
)

// metricsPipeline holds the orchestrator's Prometheus metrics, lazily
// registered on first use so importing this package never registers
// metrics a caller doesn't exercise.
type metricsPipeline struct {
	once sync.Once

	filesScanned     prometheus.Counter
	filesParsed      prometheus.Counter
	filesParseFailed prometheus.Counter
	entitiesIndexed  prometheus.Counter
	callsResolved    prometheus.Counter
	callsUnresolved  prometheus.Counter
	graphFlushes     prometheus.Counter
	summariesEmpty   prometheus.Counter
	docsIndexed      prometheus.Counter
	driftDetected    prometheus.Counter

	stageDuration prometheus.Histogram
}

var pipelineMetrics metricsPipeline

func (m *metricsPipeline) init() {
	m.once.Do(func() {
		m.filesScanned = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_files_scanned_total", Help: "Source files discovered by the scan stage"})
		m.filesParsed = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_files_parsed_total", Help: "Source files parsed successfully"})
		m.filesParseFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_files_parse_failed_total", Help: "Source files that failed to parse and were skipped"})
		m.entitiesIndexed = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_entities_indexed_total", Help: "Classes/functions/methods registered"})
		m.callsResolved = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_calls_resolved_total", Help: "Call sites resolved to a known entity"})
		m.callsUnresolved = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_calls_unresolved_total", Help: "Call sites left unresolved after the strategy ladder"})
		m.graphFlushes = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_graph_flushes_total", Help: "Graph writer flush_all invocations"})
		m.summariesEmpty = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_summaries_empty_total", Help: "Summarizer calls that yielded an empty summary after retries"})
		m.docsIndexed = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_documents_indexed_total", Help: "Markdown documents processed by the document pipeline"})
		m.driftDetected = prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_pipeline_drift_detected_total", Help: "Drift analyses that flagged a documentation/code mismatch"})

		buckets := []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}
		m.stageDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "lattice_pipeline_stage_seconds", Help: "Wall-clock duration of one orchestrator stage", Buckets: buckets})

		prometheus.MustRegister(
			m.filesScanned, m.filesParsed, m.filesParseFailed,
			m.entitiesIndexed, m.callsResolved, m.callsUnresolved,
			m.graphFlushes, m.summariesEmpty, m.docsIndexed, m.driftDetected,
			m.stageDuration,
		)
	})
}
