package cli

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/ardnew/sassy/cli/cmd"
	"github.com/ardnew/sassy/pkg"
)

// baseConfig is the name of the YAML configuration file. The JSON form
// adds a ".json" extension.
const baseConfig = "config"

// CLI is the top-level command-line interface for sassy.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	cmd.Compiler `embed:""`

	Version kong.VersionFlag `help:"Print version and exit" short:"V"`

	Compile cmd.Compile `cmd:"" default:"withargs" help:"Compile a stylesheet to CSS"`
	Gen     cmd.Gen     `cmd:""                    help:"Generate a program from a stylesheet"`
	Exec    cmd.Exec    `cmd:""                    help:"Run a generated program"            name:"run"`
	AST     cmd.AST     `cmd:""                    help:"Print the decoded stylesheet"       name:"ast"`
	Repl    cmd.Repl    `cmd:""                    help:"Start an interactive session"`
	Init    cmd.Init    `cmd:""                    help:"Initialize configuration file"`
}

// Run executes the sassy CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	err := pkg.MkdirAll()
	if err != nil {
		return err
	}

	configFilePath := pkg.ConfigPath(baseConfig)

	vars := kong.Vars{
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  pkg.CacheDir(),
		"version":            pkg.Version(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Pre-scan for logger flags to ensure early configuration regardless of
	// flag position.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				FlagsLast:           false,
				NoAppSummary:        false,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(kong.JSON, configFilePath+".json"),
		kong.Configuration(resolve, configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)
	ctx = cmd.WithCompiler(ctx, cli.Compiler)

	// Finalize logger configuration with all parsed values including
	// TimeLayout and Caller which don't use TextUnmarshaler.
	cli.Log.start(ctx)

	// [pprofConfig.start] is no-op unless built with tag pprof and enabled.
	defer cli.Pprof.start(ctx)()

	return ktx.Run(ctx, &cli)
}
