package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// Sentinel tokens understood by jsrun in place of a count
const (
	AllHosts = "ALL_HOSTS"
	AllCPUs  = "ALL_CPUS"
	AllGPUs  = "ALL_GPUS"
)

type valueKind int

const (
	kindNone valueKind = iota
	kindInt
	kindString
)

// Value is a single option value: absent (flag only), an integer or a string.
// The zero Value is absent.
type Value struct {
	kind valueKind
	i    int
	s    string
}

func None() Value {
	return Value{}
}

func Int(n int) Value {
	return Value{kind: kindInt, i: n}
}

func String(s string) Value {
	return Value{kind: kindString, s: s}
}

func (v Value) IsNone() bool {
	return v.kind == kindNone
}

// AsInt returns the integer held by v, if any.
func (v Value) AsInt() (int, bool) {
	return v.i, v.kind == kindInt
}

// Truthy mirrors the falsy rule of the formatter: absent, 0 and "" are all
// rendered as a bare flag.
func (v Value) Truthy() bool {
	switch v.kind {
	case kindInt:
		return v.i != 0
	case kindString:
		return v.s != ""
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case kindInt:
		return strconv.Itoa(v.i)
	case kindString:
		return v.s
	default:
		return ""
	}
}

func (v Value) GoString() string {
	switch v.kind {
	case kindInt:
		return fmt.Sprintf("settings.Int(%d)", v.i)
	case kindString:
		return fmt.Sprintf("settings.String(%q)", v.s)
	default:
		return "settings.None()"
	}
}

// Count is either a number or a sentinel token such as ALL_HOSTS.
type Count struct {
	n          int
	sentinel   string
	isSentinel bool
}

func Numeric(n int) Count {
	return Count{n: n}
}

// Sentinel keeps s exactly as given, the empty string included.
func Sentinel(s string) Count {
	return Count{sentinel: s, isSentinel: true}
}

// IsSentinel reports whether c carries a token rather than a number.
func (c Count) IsSentinel() bool {
	return c.isSentinel
}

// Value converts c into the form stored in an argument mapping.
func (c Count) Value() Value {
	if c.IsSentinel() {
		return String(c.sentinel)
	}
	return Int(c.n)
}

func (c Count) String() string {
	return c.Value().String()
}

// ParseCount reads a count given as text. Integer text becomes Numeric,
// everything else, surrounding whitespace included, is kept verbatim as a
// Sentinel.
func ParseCount(s string) Count {
	if n, err := strconv.Atoi(s); err == nil {
		return Numeric(n)
	}
	return Sentinel(s)
}

// IsKnownSentinel reports whether s is one of the tokens jsrun documents.
func IsKnownSentinel(s string) bool {
	switch s {
	case AllHosts, AllCPUs, AllGPUs:
		return true
	}
	return false
}

// ParseInt converts text for an integer-only setter. The *strconv.NumError is
// wrapped, not replaced.
func ParseInt(setter, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", setter, err)
	}
	return n, nil
}
