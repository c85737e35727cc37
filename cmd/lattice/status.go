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

	lerrors "github.com/kraklabs/lattice/internal/errors"
	"github.com/kraklabs/lattice/internal/output"
	"github.com/kraklabs/lattice/internal/ui"
)

func runStatus(args []string, globals GlobalFlags) {
	ctx := context.Background()
	e, err := openEnv(ctx, globals)
	if err != nil {
		fatal(err, globals)
	}
	defer e.close()

	summaries, err := e.projectManager().List(ctx)
	if err != nil {
		fatal(lerrors.NewInternalError("cannot read project status", err.Error(), "check connectivity to the graph store", err), globals)
	}

	var totalFiles, totalEntities int64
	for _, s := range summaries {
		totalFiles += s.FileCount
		totalEntities += s.EntityCount
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{
			"projects":       len(summaries),
			"total_files":    totalFiles,
			"total_entities": totalEntities,
			"detail":         summaries,
		})
		return
	}

	ui.Header("Lattice status")
	fmt.Printf("%s %s\n", ui.Label("Projects: "), ui.CountText(len(summaries)))
	fmt.Printf("%s %s\n", ui.Label("Files:    "), ui.CountText(int(totalFiles)))
	fmt.Printf("%s %s\n", ui.Label("Entities: "), ui.CountText(int(totalEntities)))
	fmt.Println()
	for _, s := range summaries {
		fmt.Printf("  %-24s files=%-6s entities=%-6s\n", s.Name, ui.CountText(int(s.FileCount)), ui.CountText(int(s.EntityCount)))
	}
}
