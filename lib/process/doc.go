// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint helpers of the pollmaker
// binary: reporting a fatal error on stderr before the structured
// logger exists, and mapping a returned error to an exit status.
package process
