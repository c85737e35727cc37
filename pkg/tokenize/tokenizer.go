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

// Package tokenize wraps a fixed BPE encoder shared by the vector indexer
// and the document pipeline's chunkers.
package tokenize

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Encoding is the fixed BPE encoding every chunker counts tokens against.
const Encoding = "cl100k_base"

var (
	once sync.Once
	enc  *tiktoken.Tiktoken
	errInit error
)

func encoder() (*tiktoken.Tiktoken, error) {
	once.Do(func() {
		enc, errInit = tiktoken.GetEncoding(Encoding)
	})
	return enc, errInit
}

// Count returns the number of BPE tokens in text under the fixed
// encoding. On encoder initialization failure it falls back to an
// approximate 4-chars-per-token heuristic so chunking can still proceed.
func Count(text string) int {
	e, err := encoder()
	if err != nil {
		return approximate(text)
	}
	return len(e.Encode(text, nil, nil))
}

func approximate(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
