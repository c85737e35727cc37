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

func runQuery(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: lattice query <cypher...>\n\nRuns a raw read-only openCypher query against the graph store.\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(lerrors.ExitInput)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(lerrors.ExitInput)
	}
	cypher := strings.Join(fs.Args(), " ")

	ctx := context.Background()
	e, err := openEnv(ctx, globals)
	if err != nil {
		fatal(err, globals)
	}
	defer e.close()

	res, err := e.backend.Query(ctx, cypher, nil)
	if err != nil {
		fatal(&lerrors.GraphError{Op: "query", Err: err}, globals)
	}

	if globals.JSON {
		rows := make([]map[string]any, 0, len(res.Rows))
		for _, row := range res.Rows {
			m := make(map[string]any, len(res.Headers))
			for i, h := range res.Headers {
				if i < len(row) {
					m[h] = row[i]
				}
			}
			rows = append(rows, m)
		}
		_ = output.JSON(rows)
		return
	}

	fmt.Println(strings.Join(res.Headers, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}
