// Package toolcmd builds canonical CLI invocations for connector tools.
//
// This layer is pure command construction: no execution, no I/O. It returns
// two projections of the same intent: argv (process argument vector) and a
// shell-quoted command string (for logging). Process lifecycle belongs to a
// higher layer.
//
// Emission policy is deterministic and explicit:
//
//   - argv[0] is always the tool binary path, mirroring POSIX/Go norms.
//   - The operation, when present, is the first positional argument.
//   - Flags from a map are emitted in sorted key order so two builds of the
//     same request produce identical argv (auditable logs, stable tests).
//   - Empty string values are skipped to avoid surprising empties.
package toolcmd

import (
	"sort"
	"strconv"
	"strings"
)

// Builder constructs argv and shell-safe command strings for one tool.
//
// The Builder implements a fluent API; it is NOT concurrency-safe. Callers
// should treat a Builder as a single-use, short-lived value object.
type Builder struct {
	args []string // argv including binary path at index 0
}

// NewBuilder returns a Builder pre-seeded with the tool binary path.
func NewBuilder(binPath string) *Builder {
	return &Builder{args: []string{binPath}}
}

// WithArg appends a positional argument if non-empty.
func (b *Builder) WithArg(arg string) *Builder {
	if arg != "" {
		b.args = append(b.args, arg)
	}
	return b
}

// WithStringFlag appends a flag with a string value if the value is non-empty.
func (b *Builder) WithStringFlag(flag, val string) *Builder {
	if val != "" {
		b.args = append(b.args, flag, val)
	}
	return b
}

// WithInt64Flag appends a flag with a base-10 int64 value (always emitted).
func (b *Builder) WithInt64Flag(flag string, val int64) *Builder {
	b.args = append(b.args, flag, strconv.FormatInt(val, 10))
	return b
}

// WithBoolFlag appends --flag=true or --flag=false (always emitted, so
// differences between invocations stay auditable).
func (b *Builder) WithBoolFlag(flag string, val bool) *Builder {
	b.args = append(b.args, flag+"="+strconv.FormatBool(val))
	return b
}

// WithFlagMap appends --key value pairs in sorted key order. Keys gain a
// leading "--" unless already dashed; empty values are skipped.
func (b *Builder) WithFlagMap(flags map[string]string) *Builder {
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		flag := k
		if !strings.HasPrefix(flag, "-") {
			flag = "--" + flag
		}
		b.WithStringFlag(flag, flags[k])
	}
	return b
}

// BuildArgv returns a defensive copy of the constructed argument vector.
func (b *Builder) BuildArgv() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// BuildString returns a single shell-quoted command string.
//
// Quoting strategy: single-quote wrapping with inner single quotes escaped as
// ' -> '\”, safe for POSIX shells and log lines.
func (b *Builder) BuildString() string {
	quoted := make([]string, len(b.args))
	for i, a := range b.args {
		quoted[i] = shQuote(a)
	}
	return strings.Join(quoted, " ")
}

// shQuote returns a POSIX-safe single-quoted token. Empty strings become ''
// to preserve round-trippability.
func shQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
