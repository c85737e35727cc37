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

// Package errors provides structured, user-facing error handling for the
// lattice CLI (index, query, search, status, projects, metadata, docs).
//
// UserError carries three levels of information — what went wrong, why,
// and how to fix it — plus an exit code so every command fails the same
// way. For classification of the lower-level scan/parse/graph/vector
// errors a command wraps into a UserError, see the taxonomy in
// taxonomy.go.
//
// # Usage
//
//	err := errors.NewDatabaseError(
//	    "cannot open the vector store",
//	    "the on-disk index is locked by another process",
//	    "stop other lattice processes and retry",
//	    underlyingErr,
//	)
//	if err != nil {
//	    errors.FatalError(err, globals.JSON)
//	}
//
// Format() renders colored terminal output; ToJSON() renders the same
// information for --json mode:
//
//	fmt.Fprint(os.Stderr, err.Format(false))
//	// Error: cannot open the vector store
//	// Cause: the on-disk index is locked by another process
//	// Fix:   stop other lattice processes and retry
//
// # Exit Codes
//
//   - ExitSuccess (0): successful execution
//   - ExitConfig (1): missing or invalid configuration (provider env vars, data dir)
//   - ExitDatabase (2): vector/relational store errors (locked, corrupted, unreachable)
//   - ExitInput (4): bad CLI arguments (invalid path, unknown project)
//   - ExitPermission (5): filesystem permission errors (data dir, index files)
//   - ExitNotFound (6): no indexed project/document matches the request
//   - ExitInternal (10): unexpected failures (parse/graph-write bugs)
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitConfig indicates configuration errors (missing/invalid env vars or config files).
	ExitConfig = 1

	// ExitDatabase indicates vector/relational store errors (locked, corrupted, unreachable).
	ExitDatabase = 2

	// ExitInput indicates invalid user input (bad arguments, validation errors).
	ExitInput = 4

	// ExitPermission indicates permission denied errors (data dir, index files).
	ExitPermission = 5

	// ExitNotFound indicates a requested project or document isn't indexed.
	ExitNotFound = 6

	// ExitInternal indicates internal errors (bugs, unexpected failures).
	// Exit code 10 signals "this is a bug that should be reported".
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
//
// UserError also carries an exit code for consistent CLI exit behavior
// and optionally wraps an underlying error for error chain compatibility.
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	// This enables error wrapping and compatibility with errors.Is/As.
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for compatibility with errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration error with exit code ExitConfig.
//
// Use this for missing or invalid LLM provider settings, data-directory
// configuration, or other startup configuration problems.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitConfig,
		Err:      err,
	}
}

// NewDatabaseError creates a store error with exit code ExitDatabase.
//
// Use this for errors opening or writing to the vector store, relational
// store, or graph backend: locked files, corruption, or connection failures.
func NewDatabaseError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitDatabase,
		Err:      err,
	}
}

// NewInputError creates an input validation error with exit code ExitInput.
//
// Use this for invalid command-line arguments, such as a path that
// doesn't exist. Input errors typically do not wrap an underlying error.
func NewInputError(msg, cause, fix string) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitInput,
		Err:      nil, // Input errors typically don't wrap underlying errors
	}
}

// NewPermissionError creates a permission denied error with exit code ExitPermission.
//
// Use this for filesystem permission failures touching the data
// directory or its index files.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitPermission,
		Err:      err,
	}
}

// NewNotFoundError creates a resource not found error with exit code ExitNotFound.
//
// Use this when a requested project or document isn't indexed.
// Not found errors typically do not wrap an underlying error.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitNotFound,
		Err:      nil, // Not found errors typically don't wrap underlying errors
	}
}

// NewInternalError creates an internal error with exit code ExitInternal.
//
// Use this for unexpected failures during indexing, parsing, or graph
// writes that indicate a bug rather than a user mistake.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitInternal,
		Err:      err,
	}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output includes colored sections for Error (red/bold), Cause
// (yellow), and Fix (green). Color output respects the NO_COLOR
// environment variable and can be explicitly disabled with noColor.
//
// Empty Cause or Fix fields are omitted from the output.
//
// Note: this method temporarily modifies the global color.NoColor state
// and restores it after formatting. The change is not synchronized, so
// concurrent color output may observe it.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format, for commands
// run with --json.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
//
// Fields with empty values (Cause, Fix) are omitted via omitempty.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// If err is a *UserError it uses Format() for colored output or ToJSON()
// for JSON mode, then exits with its ExitCode. For any other error type
// it prints a simple message and exits with ExitInternal.
//
// This function never returns - it always calls os.Exit().
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			// Encode error is intentionally ignored since we're about to exit.
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
