package jsengine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PositionalArgs converts a named parameter set into a positional argument list by
// sorting keys ascending in byte order and taking the values in that order. This is
// the parameter-ordering contract: JSON key names determine only the position of each
// argument, not a name-based binding — callers must choose keys whose alphabetical
// order matches the guest function's declared parameter order.
// Deterministic for any map; an empty map yields empty slices.
func PositionalArgs(params map[string]any) (values []any, keys []string) {
	keys = make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values = make([]any, len(keys))
	for i, k := range keys {
		values[i] = params[k]
	}
	return values, keys
}

// encodeArg serializes one argument value as a JSON literal for injection into the
// generated call expression. Every shape goes through JSON encoding: objects and
// arrays become guest object/array literals, strings arrive quoted and escaped, so
// a string parameter can never be evaluated as guest code.
func encodeArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode argument: %w", err)
	}
	return string(b), nil
}

// buildCall renders the guest call expression: name(arg1, arg2, ...).
func buildCall(functionName string, args []any) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		lit, err := encodeArg(a)
		if err != nil {
			return "", err
		}
		parts[i] = lit
	}
	return functionName + "(" + strings.Join(parts, ", ") + ")", nil
}
