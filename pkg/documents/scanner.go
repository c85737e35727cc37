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

package documents

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/lattice/pkg/model"
)

// Extensions lists the Markdown file extensions the document scanner
// recognizes.
var Extensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".mdx":      true,
}

// ScannedDoc describes one discovered Markdown file.
type ScannedDoc struct {
	AbsolutePath string
	RelativePath string
	ContentHash  string
	Content      string
}

// Scan walks root and returns every Markdown file not excluded by
// ignorePatterns (plain glob patterns matched per path component, same
// convention as the code scanner).
func Scan(root string, ignorePatterns []string) ([]ScannedDoc, error) {
	var docs []ScannedDoc
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && anyComponentIgnored(relPath, ignorePatterns) {
				return filepath.SkipDir
			}
			return nil
		}
		if anyComponentIgnored(relPath, ignorePatterns) {
			return nil
		}
		if !Extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		docs = append(docs, ScannedDoc{
			AbsolutePath: path,
			RelativePath: relPath,
			ContentHash:  model.HashContent(data),
			Content:      string(data),
		})
		return nil
	})
	return docs, err
}

func anyComponentIgnored(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	components := strings.Split(relPath, "/")
	for _, pattern := range patterns {
		for _, c := range components {
			if matched, _ := filepath.Match(pattern, c); matched {
				return true
			}
		}
	}
	return false
}
