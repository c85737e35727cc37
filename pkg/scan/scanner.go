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

// Package scan walks a repository root and emits FileInfo records,
// filtering by extension allow-list and ignore-pattern glob list.
package scan

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/lattice/pkg/model"
)

// Scanner walks a root directory and lazily emits FileInfo.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Options configures one Scan call.
type Options struct {
	Root            string
	Extensions      []string // allow-list, case-insensitive; empty means "use model.ExtensionLanguages"
	IgnorePatterns  []string
	MaxFileSizeByte int64
}

// Scan walks Root and invokes emit for each FileInfo that passes the
// extension and ignore-pattern filters. Errors reading individual files
// or directory entries are logged and the entry is skipped; Scan itself
// only returns an error when Root cannot be walked at all.
func (s *Scanner) Scan(opts Options, emit func(model.FileInfo)) error {
	info, err := os.Stat(opts.Root)
	if err != nil || !info.IsDir() {
		return &scanRootError{path: opts.Root, err: err}
	}

	allow := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		allow[strings.ToLower(e)] = true
	}

	return filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scan.walk.error", "path", path, "err", err)
			return nil
		}
		relPath, relErr := filepath.Rel(opts.Root, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && anyComponentIgnored(relPath, opts.IgnorePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if anyComponentIgnored(relPath, opts.IgnorePatterns) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		lang, known := model.ExtensionLanguages[ext]
		if !known {
			return nil
		}
		if len(allow) > 0 && !allow[ext] {
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			s.logger.Warn("scan.stat.error", "path", relPath, "err", statErr)
			return nil
		}
		if opts.MaxFileSizeByte > 0 && fi.Size() > opts.MaxFileSizeByte {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			s.logger.Warn("scan.read.error", "path", relPath, "err", readErr)
			return nil
		}

		emit(model.FileInfo{
			AbsolutePath: path,
			RelativePath: relPath,
			Language:     lang,
			ContentHash:  model.HashContent(data),
			SizeBytes:    fi.Size(),
			LineCount:    countLines(data),
		})
		return nil
	})
}

// anyComponentIgnored reports whether any path component of relPath
// matches any ignore pattern, per the scanner's ignore rule. Patterns
// containing a "/" are matched against the full path instead, since a
// single path component can never contain a separator.
func anyComponentIgnored(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	components := strings.Split(relPath, "/")
	for _, pattern := range patterns {
		if strings.Contains(pattern, "/") {
			if matchGlob(relPath, pattern) {
				return true
			}
			continue
		}
		for _, c := range components {
			if matchGlob(c, pattern) {
				return true
			}
		}
	}
	return false
}

func countLines(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	if b[len(b)-1] != '\n' {
		n++
	}
	return n
}

type scanRootError struct {
	path string
	err  error
}

func (e *scanRootError) Error() string {
	if e.err != nil {
		return "scan root " + e.path + ": " + e.err.Error()
	}
	return "scan root " + e.path + ": not a directory"
}

func (e *scanRootError) Unwrap() error { return e.err }
