// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError carries a process exit code through run().
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the code Fatal exits with for err. Usage errors and
// plain failures are 1 unless wrapped in an ExitError.
func ExitCode(err error) int {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// Fatal writes "error: err" to stderr and exits. Use it in main() for
// errors from run() where the structured logger may not be initialized.
func Fatal(err error) {
	report(os.Stderr, err)
	os.Exit(ExitCode(err))
}

func report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
