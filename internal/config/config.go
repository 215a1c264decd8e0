// Package config loads server settings from defaults, an optional YAML
// file and command-line flags, in that order of precedence.
package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/azargarov/prioq"
)

// Config holds everything the server process needs to start.
type Config struct {
	Addr            string        `yaml:"addr"`
	MaxConnections  int           `yaml:"max_connections"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	QueueType       string        `yaml:"queue_type"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	DrainOnShutdown bool          `yaml:"drain_on_shutdown"`
	MaxLineLength   int           `yaml:"max_line_length"`
	LogLevel        string        `yaml:"log_level"`

	// TraceOutput enables tracing: "-" for stdout, otherwise a file path.
	TraceOutput string `yaml:"trace_output"`

	// PinCPU pins the dispatch worker to a CPU; negative disables.
	PinCPU int `yaml:"pin_cpu"`
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		Addr:            ":36000",
		MaxConnections:  100,
		QueueCapacity:   prioq.DefaultCapacity,
		QueueType:       prioq.SortedQueue.String(),
		PollInterval:    100 * time.Millisecond,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		DrainOnShutdown: true,
		MaxLineLength:   prioq.MaxPayload,
		LogLevel:        "info",
		PinCPU:          -1,
	}
}

func bind(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "TCP listen address")
	fs.IntVar(&c.MaxConnections, "max-conn", c.MaxConnections, "Maximum concurrent connections")
	fs.IntVar(&c.QueueCapacity, "queue-cap", c.QueueCapacity, "Maximum pending requests")
	fs.StringVar(&c.QueueType, "queue-type", c.QueueType, "Queue container: sorted or heap")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Longest idle wait of the dispatch worker between queue checks")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", c.IdleTimeout, "Idle client connection timeout (0 for no timeout)")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "Deadline for writing one response")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "Graceful shutdown timeout")
	fs.BoolVar(&c.DrainOnShutdown, "drain", c.DrainOnShutdown, "Execute pending requests on shutdown instead of abandoning them")
	fs.IntVar(&c.MaxLineLength, "max-line", c.MaxLineLength, "Maximum request line length in bytes")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&c.TraceOutput, "trace", c.TraceOutput, "Trace output: - for stdout, a file path, or empty to disable")
	fs.IntVar(&c.PinCPU, "pin-cpu", c.PinCPU, "Pin the dispatch worker to this CPU (-1 to disable)")
}

// Load parses args. When -config names a YAML file its values replace
// the defaults, and flags given explicitly on the command line still
// win over the file.
func Load(name string, args []string, output io.Writer) (Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	path := fs.String("config", "", "Path to a YAML config file")
	bind(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if *path == "" {
		return cfg, cfg.Validate()
	}

	fileCfg := Default()
	if err := LoadFile(*path, &fileCfg); err != nil {
		return Config{}, err
	}

	over := flag.NewFlagSet(name, flag.ContinueOnError)
	over.SetOutput(io.Discard)
	bind(over, &fileCfg)
	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || setErr != nil {
			return
		}
		setErr = over.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return Config{}, errors.Wrap(setErr, "config: apply flag overrides")
	}
	return fileCfg, fileCfg.Validate()
}

// LoadFile decodes the YAML file at path into cfg. Keys absent from
// the file leave cfg untouched; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "config: open file")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "config: decode %s", path)
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.MaxConnections <= 0 {
		return errors.Errorf("config: max_connections must be positive, got %d", c.MaxConnections)
	}
	if c.QueueCapacity <= 0 {
		return errors.Errorf("config: queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if _, err := prioq.ParseQueueType(c.QueueType); err != nil {
		return errors.Wrap(err, "config: queue_type")
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("config: poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxLineLength <= 0 {
		return errors.Errorf("config: max_line_length must be positive, got %d", c.MaxLineLength)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "config: log_level")
	}
	return nil
}

// Options translates the queue settings into core options.
func (c Config) Options() prioq.Options {
	qt, _ := prioq.ParseQueueType(c.QueueType)
	return prioq.Options{
		Capacity:          c.QueueCapacity,
		QT:                qt,
		Poll:              prioq.RetryPolicy{Max: c.PollInterval},
		AbandonOnShutdown: !c.DrainOnShutdown,
		PinWorker:         c.PinCPU >= 0,
		CPU:               c.PinCPU,
	}
}
