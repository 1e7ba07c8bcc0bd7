// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "strconv"

// ExitError ends the process with Code and no further output; the
// command has already reported the problem itself, as check-cache does
// for an unreadable snapshot. process.Report recognises it through
// ExitCode.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "exit status " + strconv.Itoa(e.Code)
}

func (e *ExitError) ExitCode() int { return e.Code }
