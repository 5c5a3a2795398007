package game

import (
	"strconv"

	"github.com/James-Trimble/PlayPalace11/internal/protocol"
)

// OptionKind is the declared type of a per-game option value.
type OptionKind uint8

const (
	OptionInt OptionKind = iota
	OptionBool
)

// OptionSpec declares one option: its key, kind, label key for menus, default
// and (for ints) inclusive range.
type OptionSpec struct {
	Key     string
	Kind    OptionKind
	Label   string
	Default int
	Min     int
	Max     int
}

// Options is a validated option set. Bools are stored as 0/1.
type Options map[string]int

// ResolveOptions applies schema defaults, overridden by supplied values, and
// validates each supplied value against its spec. Unknown keys and
// out-of-range or non-boolean values are graceful rejections.
func ResolveOptions(schema []OptionSpec, supplied map[string]int) (Options, error) {
	specs := make(map[string]OptionSpec, len(schema))
	out := make(Options, len(schema))
	for _, spec := range schema {
		specs[spec.Key] = spec
		out[spec.Key] = spec.Default
	}
	for key, val := range supplied {
		spec, ok := specs[key]
		if !ok {
			return nil, protocol.E(protocol.CodeInvalidOption, "unknown-option", "option", key)
		}
		switch spec.Kind {
		case OptionBool:
			if val != 0 && val != 1 {
				return nil, protocol.E(protocol.CodeInvalidOption, "option-not-boolean",
					"option", key, "value", strconv.Itoa(val))
			}
		case OptionInt:
			if val < spec.Min || val > spec.Max {
				return nil, protocol.E(protocol.CodeInvalidOption, "option-out-of-range",
					"option", key,
					"value", strconv.Itoa(val),
					"min", strconv.Itoa(spec.Min),
					"max", strconv.Itoa(spec.Max))
			}
		}
		out[key] = val
	}
	return out, nil
}
