package config

import (
	"flag"
	"strings"
	"time"
)

// Flags holds command-line options. Build flags are bound with Bind.
type Flags struct {
	Config      string
	Debug       bool
	Watch       bool
	Rebuild     bool
	LogFile     string
	Fingerprint string
	Platform    string
	Interval    time.Duration
	Inspect     string
	WriteConfig string
}

// Bind registers the compiler flags on fs.
func (f *Flags) Bind(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.Watch, "watch", false, "Keep running and recompile changed sources")
	fs.BoolVar(&f.Rebuild, "rebuild", false, "Ignore build state and recompile everything")
	fs.StringVar(&f.LogFile, "log", "", "Also write logs to this file")
	fs.StringVar(&f.Fingerprint, "fingerprint", "", "Change detection: timestamp or hash")
	fs.StringVar(&f.Platform, "platform", "", "Target platform (windows, osx, linux)")
	fs.DurationVar(&f.Interval, "interval", 0, "Watch mode poll interval")
	fs.StringVar(&f.Inspect, "inspect", "", "Print a summary of a compiled resource file and exit")
	fs.StringVar(&f.WriteConfig, "write-config", "", "Write the effective configuration to this file and exit")
}

// Parse parses args, allowing flags before and after positional arguments
// (`cecompiler game.ceproj --watch`). It returns the positional arguments.
func (f *Flags) Parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var flagArgs, positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}

		flagArgs = append(flagArgs, arg)

		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if def := fs.Lookup(name); def != nil && !isBoolFlag(def) && i+1 < len(args) {
			i++
			flagArgs = append(flagArgs, args[i])
		}
	}

	if err := fs.Parse(flagArgs); err != nil {
		return nil, err
	}
	return positional, nil
}

func isBoolFlag(def *flag.Flag) bool {
	b, ok := def.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.Fingerprint != "" {
		cfg.Build.Fingerprint = f.Fingerprint
	}
	if f.Platform != "" {
		cfg.Build.Platform = f.Platform
	}
	if f.Interval > 0 {
		cfg.Build.WatchInterval = f.Interval
	}
}
