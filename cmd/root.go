// Package cmd provides the tagc command-line interface.
//
// Configuration is read, from highest to lowest priority, from command-line
// flags, TAGC_<SECTION>_<KEY> environment variables (a .env file in the
// working directory is loaded first), the file named by --config or
// TAGC_CONFIG_FILE, .tagc.yml in the working directory, and built-in
// defaults.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tagc/internal/config"
	"github.com/conneroisu/tagc/internal/logging"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	watch   bool
	check   bool
}

// NewRootCmd builds the tagc command tree with its own configuration
// instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "tagc [flags] <source> [destination]",
		Short: "Compile tag files to JavaScript",
		Long: `tagc compiles tag files with an external tag compiler.

The source is a single tag file or a directory searched recursively. The
destination is optional:

  tagc foo.tag                 writes foo.js next to foo.tag
  tagc foo.tag public/js       writes public/js/foo.js
  tagc tags                    writes tags/**/*.js next to each source
  tagc tags public/js          mirrors tags/ into public/js/
  tagc tags public/all.js      concatenates every tag into public/all.js

Use --watch to rebuild on every change and --check to report syntax errors
without writing anything.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
		RunE: a.runRoot,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .tagc.yml, can also use TAGC_CONFIG_FILE env var)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	f := root.Flags()
	f.BoolVarP(&a.watch, "watch", "w", false, "watch the source and rebuild on change")
	f.BoolVar(&a.check, "check", false, "report syntax errors instead of compiling")
	addCompilerFlags(f)

	bindFlags(a.v, pf, persistentFlagKeys)
	bindFlags(a.v, f, compilerFlagKeys)

	root.AddCommand(newVersionCmd(), newConfigCmd(a))
	return root
}

// Execute runs the root command.
func Execute() error {
	return run(NewRootCmd())
}

// run executes root and prints a failure on its error stream, keeping the
// output stream to produced files and reports.
func run(root *cobra.Command) error {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// initConfig wires the configuration sources into a.v.
func (a *app) initConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	switch {
	case a.cfgFile != "":
		a.v.SetConfigFile(a.cfgFile)
	case os.Getenv("TAGC_CONFIG_FILE") != "":
		a.v.SetConfigFile(os.Getenv("TAGC_CONFIG_FILE"))
	default:
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".tagc")
	}
	config.BindEnv(a.v)

	err := a.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", a.v.ConfigFileUsed())
	case errors.As(err, &notFound):
	default:
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// load returns the effective configuration and a logger writing to the
// command's error stream.
func (a *app) load(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return nil, nil, err
	}
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	return cfg, logging.NewLogger(lc), nil
}

func (a *app) runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	if a.watch && a.check {
		return errors.New("--watch and --check cannot be combined")
	}

	cfg, logger, err := a.load(cmd)
	if err != nil {
		return err
	}

	var dest string
	if len(args) > 1 {
		dest = args[1]
	}
	spec := cfg.Spec(args[0], dest)

	switch {
	case a.check:
		return runCheck(cmd, cfg, logger, spec)
	case a.watch:
		return runWatch(cmd, cfg, logger, spec)
	default:
		return runBuild(cmd, cfg, logger, spec)
	}
}
