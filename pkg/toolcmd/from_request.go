package toolcmd

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FromRequest maps a connector invocation to its canonical argv.
//
// Ordering matches the connector CLI contract:
//
//	<toolsDir>/<command> [operation] [--flag value]... --json
//
// The trailing --json pins machine-readable output; connectors print their
// result envelope to stdout and diagnostics to stderr.
func FromRequest(toolsDir, command, operation string, flags map[string]string) ([]string, error) {
	if err := validateName(command); err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}
	if operation != "" {
		if err := validateName(operation); err != nil {
			return nil, fmt.Errorf("operation: %w", err)
		}
	}

	b := NewBuilder(filepath.Join(toolsDir, command)).
		WithArg(operation).
		WithFlagMap(flags)
	b.args = append(b.args, "--json")

	return b.BuildArgv(), nil
}

// validateName rejects path traversal and shell metacharacters in tool and
// operation identifiers. Argv is passed to exec directly (no shell), so this
// guards the filesystem lookup, not quoting.
func validateName(s string) error {
	if s == "" {
		return fmt.Errorf("empty identifier")
	}
	if strings.ContainsAny(s, "/\\ \t\n;|&$") || strings.Contains(s, "..") {
		return fmt.Errorf("invalid identifier %q", s)
	}
	return nil
}
