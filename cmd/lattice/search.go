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
	"context"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/internal/output"
)

func runSearch(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	topK := fs.Int("top-k", 10, "number of results to return")
	entityType := fs.String("type", "", "restrict results to a metadata entity_type (e.g. function, class, document)")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: lattice search <project> <query text...>\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(lerrors.ExitInput)
	}
	if fs.NArg() < 2 {
		fs.Usage()
		os.Exit(lerrors.ExitInput)
	}
	project := fs.Arg(0)
	queryText := strings.Join(fs.Args()[1:], " ")

	ctx := context.Background()
	e, err := openEnv(ctx, globals)
	if err != nil {
		fatal(err, globals)
	}
	defer e.close()

	where := map[string]string{"project_name": project}
	if *entityType != "" {
		where["entity_type"] = *entityType
	}

	results, err := e.vectors.Query(ctx, collectionFor(project), queryText, *topK, where)
	if err != nil {
		fatal(err, globals)
	}

	if globals.JSON {
		type hit struct {
			Content  string            `json:"content"`
			Metadata map[string]string `json:"metadata"`
		}
		hits := make([]hit, 0, len(results))
		for _, r := range results {
			hits = append(hits, hit{Content: r.Content, Metadata: r.Metadata})
		}
		_ = output.JSON(hits)
		return
	}

	for i, r := range results {
		fmt.Printf("%d. %s (%s) %s\n", i+1, r.Metadata["entity_name"], r.Metadata["entity_type"], r.Metadata["file_path"])
		fmt.Println("   " + truncateLine(r.Content, 160))
	}
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
