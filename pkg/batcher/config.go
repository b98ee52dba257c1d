package batcher

import (
	"errors"
	"flag"

	"github.com/grafana/dskit/flagext"
)

// Config configures a [Batcher].
type Config struct {
	// MaxRows is the number of buffered rows at which the batcher reports
	// itself full.
	MaxRows int `yaml:"max_rows"`

	// TargetSize is the in-memory size of buffered batches at which the
	// batcher reports itself full. The size of a flushed batch may exceed
	// TargetSize by up to one appended batch.
	TargetSize flagext.Bytes `yaml:"target_size"`
}

// RegisterFlagsWithPrefix registers flags with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	_ = cfg.TargetSize.Set("64MB")

	f.IntVar(&cfg.MaxRows, prefix+"max-rows", 64*1024, "The number of rows to accumulate before flushing a batch.")
	f.Var(&cfg.TargetSize, prefix+"target-size", "The in-memory size of buffered data to accumulate before flushing a batch.")
}

// Validate validates the Config.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.MaxRows <= 0 {
		errs = append(errs, errors.New("MaxRows must be greater than 0"))
	}
	if cfg.TargetSize <= 0 {
		errs = append(errs, errors.New("TargetSize must be greater than 0"))
	}

	return errors.Join(errs...)
}
