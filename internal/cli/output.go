/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes of the draftbook command.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran but was refused (unknown id, blank title, ...)
	ExitCommandError = 2 // bad flags, unreadable data directory, unusable backend
)

// ExitError carries the exit code a command should end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Plain errors map to ExitFailure, nil to ExitSuccess.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Printer writes command results as text or as one JSON document per call.
type Printer struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope of --format json.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result prints data. In text mode text is printed instead of data.
func (p Printer) Result(data any, text string) error {
	if p.Format == "json" {
		return json.NewEncoder(p.Writer).Encode(Response{Status: "ok", Data: data})
	}
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintln(p.Writer, text)
	return err
}

// Failure prints err in the configured format and returns it unchanged.
func (p Printer) Failure(err error) error {
	if err == nil {
		return nil
	}
	if p.Format == "json" {
		_ = json.NewEncoder(p.Writer).Encode(Response{Status: "error", Error: err.Error()})
	}
	return err
}
