package lang

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// builtin is a function available to every stylesheet.
type builtin struct {
	params []string
	fn     func(env *Env, args []any) (any, error)
}

//nolint:gochecknoglobals
var builtins = map[string]builtin{
	"unquote": {[]string{"string"}, func(_ *Env, args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return args[0], nil
		}

		return unquote(s), nil
	}},

	"quote": {[]string{"string"}, func(_ *Env, args []any) (any, error) {
		s := ToCSS(args[0])

		return `"` + strings.ReplaceAll(unquote(s), `"`, `\"`) + `"`, nil
	}},

	"percentage": {[]string{"number"}, func(_ *Env, args []any) (any, error) {
		f, ok := toFloat(args[0])
		if !ok {
			return nil, argError("percentage", "number", args[0])
		}

		return FormatNumber(f*100) + "%", nil
	}},

	"type-of": {[]string{"value"}, func(_ *Env, args []any) (any, error) {
		return TypeOf(args[0]), nil
	}},

	"length": {[]string{"list"}, func(_ *Env, args []any) (any, error) {
		if m, ok := args[0].(map[string]any); ok {
			return len(m), nil
		}

		return len(toList(args[0])), nil
	}},

	"nth": {[]string{"list", "n"}, func(_ *Env, args []any) (any, error) {
		list := toList(args[0])
		if m, ok := args[0].(map[string]any); ok {
			list = mapPairs(m)
		}

		n, ok := toInt(args[1])
		if !ok {
			return nil, argError("nth", "integer", args[1])
		}

		if n < 0 {
			n += len(list) + 1
		}

		if n < 1 || n > len(list) {
			return nil, ErrArgument.Wrap(
				fmt.Errorf("nth: index %v out of bounds for list of length %d",
					args[1], len(list)),
			)
		}

		return list[n-1], nil
	}},

	"map-get": {[]string{"map", "key"}, func(_ *Env, args []any) (any, error) {
		m, ok := args[0].(map[string]any)
		if !ok {
			return nil, argError("map-get", "map", args[0])
		}

		return m[ToCSS(args[1])], nil
	}},

	"map-keys": {[]string{"map"}, func(_ *Env, args []any) (any, error) {
		m, ok := args[0].(map[string]any)
		if !ok {
			return nil, argError("map-keys", "map", args[0])
		}

		keys := make([]any, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			keys = append(keys, k)
		}

		return keys, nil
	}},

	"if": {[]string{"condition", "if-true", "if-false"}, func(_ *Env, args []any) (any, error) {
		if Truthy(args[0]) {
			return args[1], nil
		}

		return args[2], nil
	}},

	"unique-id": {nil, func(env *Env, _ []any) (any, error) {
		return strings.ReplaceAll(env.UniqueIdent("u"), "-", ""), nil
	}},
}

// callBuiltin invokes the builtin name, reporting whether it exists.
func callBuiltin(env *Env, name string, args []any) (any, bool, error) {
	b, ok := builtins[normName(name)]
	if !ok {
		return nil, false, nil
	}

	if len(args) != len(b.params) {
		return nil, true, ErrArgument.Wrap(
			fmt.Errorf("%s: expected %d arguments, got %d",
				name, len(b.params), len(args)),
		).With(slog.Any("params", b.params))
	}

	out, err := b.fn(env, args)

	return out, true, err
}

// BuiltinNames returns the sorted names of all builtin functions.
func BuiltinNames() []string {
	return slices.Sorted(maps.Keys(builtins))
}

func argError(fn, want string, got any) error {
	return ErrArgument.Wrap(
		errors.New(fn + ": expected " + want + ", got " + TypeOf(got)),
	)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}

	return s
}

// mapPairs returns the entries of m as [key, value] lists in key order.
func mapPairs(m map[string]any) []any {
	pairs := make([]any, 0, len(m))

	for _, k := range slices.Sorted(maps.Keys(m)) {
		pairs = append(pairs, []any{k, m[k]})
	}

	return pairs
}
