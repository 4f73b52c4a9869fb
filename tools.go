//go:build tools

// This file pins the linter run by CI so that go.sum records it. The
// enabled checks, including exhaustive switches over messages.Inbound,
// live in .golangci.yml.
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
)
