package mixer

import (
	"fmt"
	"strconv"
	"strings"
)

// EffectType is the closed enumeration of bus effects a mixer can host,
// per spec.md §4.5.
type EffectType int

const (
	EffectReverb EffectType = iota
	EffectEcho
	EffectChorus
	EffectCompressor
	EffectEQ
)

func (t EffectType) String() string {
	switch t {
	case EffectReverb:
		return "reverb"
	case EffectEcho:
		return "echo"
	case EffectChorus:
		return "chorus"
	case EffectCompressor:
		return "compressor"
	case EffectEQ:
		return "eq"
	default:
		return "unknown"
	}
}

func parseEffectType(keyword string) (EffectType, bool) {
	switch keyword {
	case "reverb":
		return EffectReverb, true
	case "echo":
		return EffectEcho, true
	case "chorus":
		return EffectChorus, true
	case "compressor":
		return EffectCompressor, true
	case "eq":
		return EffectEQ, true
	default:
		return 0, false
	}
}

// Effect is one entry in a mixer's ordered effect list: a user-supplied
// id (possibly empty), a closed type tag, and its typed parameters
// parsed positionally from the spec string.
type Effect struct {
	ID     string
	Type   EffectType
	Params []float64
}

// ParseEffectSpec parses spec.md §4.5's set_fx grammar: an optional
// leading "$id", then a ":"-separated sequence of keyword + positional
// float parameters. An empty spec, or a spec consisting only of "$id",
// is not parsed here — callers distinguish "clear" and "remove by id"
// before calling this.
func ParseEffectSpec(spec string) (Effect, error) {
	parts := strings.Split(spec, ":")
	var id string
	if len(parts) > 0 && strings.HasPrefix(parts[0], "$") {
		id = strings.TrimPrefix(parts[0], "$")
		parts = parts[1:]
	}
	if len(parts) == 0 || parts[0] == "" {
		return Effect{}, fmt.Errorf("mixer: effect spec %q has no type keyword", spec)
	}
	typ, ok := parseEffectType(parts[0])
	if !ok {
		return Effect{}, fmt.Errorf("mixer: effect spec %q: unknown effect type %q", spec, parts[0])
	}
	params := make([]float64, 0, len(parts)-1)
	for _, raw := range parts[1:] {
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Effect{}, fmt.Errorf("mixer: effect spec %q: bad parameter %q: %w", spec, raw, err)
		}
		params = append(params, v)
	}
	return Effect{ID: id, Type: typ, Params: params}, nil
}

// specIsIDOnly reports whether spec is just "$id" with no effect
// keyword — the "remove the named effect" shorthand.
func specIsIDOnly(spec string) (id string, ok bool) {
	if !strings.HasPrefix(spec, "$") {
		return "", false
	}
	if strings.Contains(spec, ":") {
		return "", false
	}
	return strings.TrimPrefix(spec, "$"), true
}
