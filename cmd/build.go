package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/tagc/internal/build"
	"github.com/conneroisu/tagc/internal/check"
	"github.com/conneroisu/tagc/internal/compiler"
	"github.com/conneroisu/tagc/internal/config"
	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/conneroisu/tagc/internal/flow"
	"github.com/conneroisu/tagc/internal/livereload"
	"github.com/conneroisu/tagc/internal/logging"
	"github.com/conneroisu/tagc/internal/rebuild"
	"github.com/conneroisu/tagc/internal/report"
)

// newCompiler returns the process-backed compiler, memoized when a cache
// size is configured.
func newCompiler(cfg *config.Config) (compiler.Compiler, error) {
	ec, err := compiler.NewExecCompiler(cfg.Compiler.Command, cfg.Compiler.Args, cfg.Compiler.Timeout)
	if err != nil {
		return nil, err
	}
	if cfg.Compiler.CacheSize == 0 {
		return ec, nil
	}
	return compiler.NewCached(ec, cfg.Compiler.CacheSize)
}

func newRunner(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, comp compiler.Compiler) (*build.Runner, error) {
	rep, err := report.New(cfg.Build.Format, cmd.OutOrStdout(), "")
	if err != nil {
		return nil, err
	}
	return build.NewRunner(afero.NewOsFs(), comp,
		build.WithReporter(rep),
		build.WithLogger(logger),
		build.WithModuleGlobal(cfg.Build.ModuleGlobal),
	), nil
}

func runBuild(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, spec flow.Spec) error {
	comp, err := newCompiler(cfg)
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, cfg, logger, comp)
	if err != nil {
		return err
	}
	_, err = runner.Run(cmd.Context(), spec, cfg.CompilerOptions())
	return err
}

func runWatch(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, spec flow.Spec) error {
	comp, err := newCompiler(cfg)
	if err != nil {
		return err
	}
	if cached, ok := comp.(*compiler.Cached); ok {
		defer func() {
			hits, misses := cached.Stats()
			logger.Info(cmd.Context(), "compile cache", "hits", hits, "misses", misses, "entries", cached.Len())
		}()
	}
	runner, err := newRunner(cmd, cfg, logger, comp)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []rebuild.Option{
		rebuild.WithLogger(logger),
		rebuild.WithDebounce(cfg.Watch.Debounce),
	}

	if addr := cfg.Watch.Livereload; addr != "" {
		hub := livereload.NewHub(
			livereload.WithLogger(logger),
			livereload.WithOriginPatterns(cfg.Watch.LivereloadOrigins...),
		)
		defer hub.Close()
		go func() {
			if err := hub.ListenAndServe(ctx, addr); err != nil {
				logger.Error(ctx, err, "live reload server stopped", "addr", addr)
			}
		}()
		opts = append(opts, rebuild.WithPassHook(func(rep *build.Report, err error) {
			hub.Broadcast(livereload.PassMessage(rep, err))
		}))
	}

	return rebuild.New(runner, spec, cfg.CompilerOptions(), opts...).Run(ctx)
}

func runCheck(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, spec flow.Spec) error {
	fields := strings.Fields(cfg.Compiler.AnalyzerCommand)
	if len(fields) == 0 {
		return tagcerrors.NewConfigError(tagcerrors.ErrCodeConfigInvalid,
			"check mode needs compiler.analyzer_command (TAGC_COMPILER_ANALYZER_COMMAND)")
	}
	analyzer, err := compiler.NewExecAnalyzer(fields[0], fields[1:], cfg.Compiler.Timeout)
	if err != nil {
		return err
	}

	n, err := check.New(afero.NewOsFs(), analyzer, cmd.OutOrStdout(), logger).Run(cmd.Context(), spec)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%d syntax error(s) found", n)
	}
	return nil
}
