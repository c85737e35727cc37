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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitGlobalArgs(t *testing.T) {
	cases := []struct {
		name       string
		argv       []string
		wantGlobal []string
		wantRest   []string
	}{
		{
			name:       "no args",
			argv:       nil,
			wantGlobal: nil,
			wantRest:   nil,
		},
		{
			name:       "command only",
			argv:       []string{"index"},
			wantGlobal: []string{},
			wantRest:   []string{"index"},
		},
		{
			name:       "global flags before command",
			argv:       []string{"--json", "-q", "index", "--project", "foo"},
			wantGlobal: []string{"--json", "-q"},
			wantRest:   []string{"index", "--project", "foo"},
		},
		{
			name:       "all global flags, no command",
			argv:       []string{"--version"},
			wantGlobal: []string{"--version"},
			wantRest:   nil,
		},
		{
			name:       "subcommand flag value looks like a flag but follows the command",
			argv:       []string{"query", "--project", "foo"},
			wantGlobal: []string{},
			wantRest:   []string{"query", "--project", "foo"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			global, rest := splitGlobalArgs(tc.argv)
			assert.Equal(t, tc.wantGlobal, global)
			assert.Equal(t, tc.wantRest, rest)
		})
	}
}
