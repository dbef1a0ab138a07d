package cli

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/sassy/log"
)

// resolve is a [kong.ConfigurationLoader] for YAML config files.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve, "/path/to/config")
//
// Keys are flag names. Nested mappings join their keys with "-", and
// underscores may stand in for hyphens, so these are equivalent:
//
//	log-level: debug
//
//	log_level: debug
//
//	log:
//	  level: debug
//
// Lists are joined with commas. Command-line flags override config file
// values. A file that cannot be decoded is ignored with a warning.
func resolve(r io.Reader) (kong.Resolver, error) {
	var doc map[string]any

	err := yaml.NewDecoder(r).Decode(&doc)
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn("ignoring configuration file", slog.String("error", err.Error()))

		return config{}, nil
	}

	c := config{}
	c.flatten("", doc)

	return c, nil
}

// config implements [kong.Resolver] over flattened configuration keys.
type config map[string]any

func (c config) flatten(prefix string, m map[string]any) {
	for k, v := range m {
		key := strings.ReplaceAll(prefix+k, "_", "-")

		if sub, ok := v.(map[string]any); ok {
			c.flatten(key+"-", sub)

			continue
		}

		c[key] = flagText(v)
	}
}

// flagText converts a decoded value into the form kong parses. Numbers
// and lists are passed as text.
func flagText(v any) any {
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = toString(e)
		}

		return strings.Join(parts, ",")
	}

	return v
}

func toString(v any) string {
	if s, ok := flagText(v).(string); ok {
		return s
	}

	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}

	return ""
}

// Validate implements [kong.Resolver].
func (c config) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (c config) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	if value, ok := c[flag.Name]; ok {
		return value, nil
	}

	return nil, nil
}
