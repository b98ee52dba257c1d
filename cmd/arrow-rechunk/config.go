package main

import (
	"flag"
	"os"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/grafana/growable/pkg/arrowio"
	"github.com/grafana/growable/pkg/batcher"
)

const configFileFlag = "config.file"

// Config is the configuration of arrow-rechunk. It is loaded from an
// optional YAML file, and command-line flags override the file.
type Config struct {
	Output      string `yaml:"output"`
	Compression string `yaml:"compression"`
	DropNulls   string `yaml:"drop_nulls"`
	Concurrency int    `yaml:"concurrency"`
	LogLevel    string `yaml:"log_level"`

	MetricsPrint bool `yaml:"metrics_print"`

	Batcher batcher.Config `yaml:"batcher"`
}

// RegisterFlags registers flags for cfg and sets their defaults.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.String(configFileFlag, "", "Optional YAML file to load configuration from. Flags take precedence over the file.")

	f.StringVar(&cfg.Output, "output", "", "Path to write the rechunked Arrow IPC stream to. Defaults to stdout.")
	f.StringVar(&cfg.Compression, "compression", "none", "Compression codec for the output buffers. Valid codecs: [none, zstd, lz4].")
	f.StringVar(&cfg.DropNulls, "drop-nulls", "", "Drop rows where this column is null.")
	f.IntVar(&cfg.Concurrency, "concurrency", 4, "Number of input files to read at once.")
	f.StringVar(&cfg.LogLevel, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error].")
	f.BoolVar(&cfg.MetricsPrint, "metrics.print", false, "Print metrics to stderr in the Prometheus text format before exiting.")

	cfg.Batcher.RegisterFlagsWithPrefix("batch.", f)
}

// Validate validates cfg.
func (cfg *Config) Validate() error {
	if cfg.Concurrency <= 0 {
		return errors.Errorf("concurrency must be greater than 0, got %d", cfg.Concurrency)
	}
	if _, err := arrowio.ParseCompression(cfg.Compression); err != nil {
		return errors.Wrap(err, "invalid output config")
	}
	if _, err := levelOption(cfg.LogLevel); err != nil {
		return err
	}
	return errors.Wrap(cfg.Batcher.Validate(), "invalid batch config")
}

// parseConfig builds a Config from args: flag defaults, then the YAML file
// named by -config.file, then the remaining flags.
func parseConfig(args []string) (*Config, *flag.FlagSet, error) {
	var cfg Config

	fs := flag.NewFlagSet("arrow-rechunk", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	if path := configFileFromArgs(args); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return nil, nil, err
		}
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, fs, nil
}

// configFileFromArgs returns the value of -config.file in args, if any. It
// is read before flags are parsed so that the file can be overridden.
func configFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}

		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if value, ok := strings.CutPrefix(name, configFileFlag+"="); ok {
			return value
		}
		if name == configFileFlag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening config file")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

func levelOption(lvl string) (level.Option, error) {
	switch lvl {
	case "debug":
		return level.AllowDebug(), nil
	case "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, errors.Errorf("unrecognized log level %q", lvl)
	}
}
