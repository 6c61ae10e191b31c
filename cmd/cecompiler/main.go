// cecompiler compiles the source assets of a project into engine resources.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/ceforge/internal/config"
	"github.com/Faultbox/ceforge/internal/logger"
	"github.com/Faultbox/ceforge/internal/project"
	"github.com/Faultbox/ceforge/internal/resource/builtin"
	"github.com/Faultbox/ceforge/internal/toolchain"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var flags config.Flags
	fs := flag.NewFlagSet("cecompiler", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }
	flags.Bind(fs)

	positional, err := flags.Parse(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if flags.Inspect != "" {
		if err := inspect(os.Stdout, flags.Inspect); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := config.Load(&flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	if flags.WriteConfig != "" {
		if err := cfg.SaveTo(flags.WriteConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if len(positional) < 1 || len(positional) > 2 {
		printUsage(fs)
		return 2
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return 1
	}
	defer logger.Sync(log)

	desc, err := project.LoadDescriptor(positional[0])
	if err != nil {
		log.Error("cannot open project", zap.Error(err))
		return 1
	}
	if cfg.Build.Platform != "" {
		desc.TargetPlatform = cfg.Build.Platform
	}

	runner := toolchain.NewExecRunner(cfg.Build.ToolTimeout, log.Named("tool"))
	registry, err := builtin.NewRegistry(cfg, runner)
	if err != nil {
		log.Error("cannot create compilers", zap.Error(err))
		return 1
	}

	opts := project.Options{
		StateDir:    cfg.Build.StateDir,
		Fingerprint: cfg.Build.Fingerprint,
	}
	if len(positional) == 2 {
		opts.Pattern = positional[1]
	}
	pc, err := project.New(desc, registry, opts, log)
	if err != nil {
		log.Error("cannot create project compiler", zap.Error(err))
		return 1
	}

	log.Info("compiling project",
		zap.String("project", desc.Path),
		zap.String("output", desc.OutputPath()),
		zap.String("platform", desc.TargetPlatform),
		zap.Strings("extensions", registry.SupportedExtensions()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.Watch {
		log.Info("watching for changes", zap.Duration("interval", cfg.Build.WatchInterval))
		if err := pc.Watch(ctx, cfg.Build.WatchInterval, flags.Rebuild); err != nil {
			log.Error("watch stopped", zap.Error(err))
			return 1
		}
		return 0
	}

	res, err := pc.CompileOnce(ctx, flags.Rebuild)
	if err != nil {
		log.Error("compilation aborted", zap.Error(err))
		return 1
	}
	project.LogResult(log, res)
	if res.Failed > 0 {
		return 1
	}
	return 0
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, `cecompiler - engine asset compiler

Usage:
  cecompiler <project.ceproj> [search-pattern] [options]
  cecompiler --inspect <file>
  cecompiler --write-config <file> [options]

Examples:
  cecompiler game.ceproj
  cecompiler game.ceproj "*.obj" --rebuild
  cecompiler game.ceproj --watch --fingerprint hash

Options:`)
	fs.PrintDefaults()
}
