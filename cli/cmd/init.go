package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/sassy/log"
	"github.com/ardnew/sassy/pkg"
	"github.com/ardnew/sassy/profile"
)

// Init generates a default configuration file with current flag values.
type Init struct {
	Force bool `help:"Overwrite existing configuration file" short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	ktx := kongContextFrom(ctx)

	confPath, ok := ktx.Model.Vars()[ConfigIdentifier]
	if !ok {
		panic("internal error: config path undefined")
	}

	_, err = os.Stat(confPath)
	if err == nil && !i.Force {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			With(slog.Bool("exists", true)).
			Wrap(ErrFileExists)
	}

	data, err := yaml.MarshalWithOptions(flagValues(ktx), yaml.Indent(2))
	if err != nil {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			Wrap(err)
	}

	header := fmt.Sprintf("# %s configuration (%s)\n", pkg.Name, pkg.Version())

	err = os.WriteFile(confPath, append([]byte(header), data...), 0o600)
	if err != nil {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			Wrap(err)
	}

	log.DebugContext(
		ctx,
		"initialized configuration file",
		slog.String("path", confPath),
	)

	return nil
}

// flagValues returns the current value of every configurable flag, in
// model order. Unset strings and empty lists are omitted.
func flagValues(ktx *kong.Context) yaml.MapSlice {
	prefixIgnore := []string{"help", "version", profile.Tag}

	var out yaml.MapSlice

	for _, flag := range ktx.Model.Flags {
		if flag.Hidden || slices.ContainsFunc(prefixIgnore, func(s string) bool {
			return strings.HasPrefix(flag.Name, s)
		}) {
			continue
		}

		if val := configValue(ktx.FlagValue(flag)); val != nil {
			out = append(out, yaml.MapItem{Key: flag.Name, Value: val})
		}
	}

	return out
}

// configValue converts a flag value into its configuration file form.
func configValue(val any) any {
	switch v := val.(type) {
	case nil:
		return nil

	case bool:
		return v

	case string:
		if v == "" {
			return nil
		}

		return v

	case int:
		return strconv.Itoa(v)

	case []string:
		if len(v) == 0 {
			return nil
		}

		return v

	default:
		return fmt.Sprint(v)
	}
}
