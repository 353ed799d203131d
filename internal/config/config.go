// Package config loads the cafe settings from an optional YAML file, with
// command-line flags taking precedence over file values.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cafeconnect/internal/state"
)

const (
	SourceSimulated = "simulated"
	SourceKafka     = "kafka"
	SourceNATS      = "nats"
)

type Store struct {
	Backend string `yaml:"backend"` // memory|pebble|badger
	Dir     string `yaml:"dir"`
}

type Kafka struct {
	Bootstrap string `yaml:"bootstrap"`
	Topic     string `yaml:"topic"`
}

type NATS struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

type Status struct {
	Source   string   `yaml:"source"` // simulated|kafka|nats
	Schedule []string `yaml:"schedule"`
	Kafka    Kafka    `yaml:"kafka"`
	NATS     NATS     `yaml:"nats"`
}

type Config struct {
	Store       Store  `yaml:"store"`
	TaxRate     string `yaml:"tax_rate"`
	CatalogFile string `yaml:"catalog_file"`
	HistoryDir  string `yaml:"history_dir"`
	SnapshotDir string `yaml:"snapshot_dir"`
	MetricsAddr string `yaml:"metrics_addr"`
	Status      Status `yaml:"status"`
}

func Default() Config {
	return Config{
		Store:       Store{Backend: state.BackendPebble, Dir: "./data/cafe"},
		TaxRate:     "0.08",
		SnapshotDir: "./snapshots",
		Status: Status{
			Source: SourceSimulated,
			Kafka:  Kafka{Topic: "cafe.orders.status"},
			NATS:   NATS{URL: "nats://127.0.0.1:4222", Prefix: "cafe.orders.status"},
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate checks the values that cannot be caught by the type system.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "", state.BackendMemory:
	case state.BackendPebble, state.BackendBadger:
		if c.Store.Dir == "" {
			return errors.Newf("store backend %s needs a dir", c.Store.Backend)
		}
	default:
		return errors.Newf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := c.Rate(); err != nil {
		return err
	}
	if _, err := c.ScheduleOffsets(); err != nil {
		return err
	}
	switch c.Status.Source {
	case SourceSimulated:
	case SourceKafka:
		if c.Status.Kafka.Bootstrap == "" || c.Status.Kafka.Topic == "" {
			return errors.New("kafka status source needs bootstrap and topic")
		}
	case SourceNATS:
		if c.Status.NATS.URL == "" {
			return errors.New("nats status source needs a url")
		}
	default:
		return errors.Newf("unknown status source %q", c.Status.Source)
	}
	return nil
}

// Rate parses the tax rate.
func (c Config) Rate() (decimal.Decimal, error) {
	r, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "tax_rate %q", c.TaxRate)
	}
	if r.IsNegative() {
		return decimal.Zero, errors.Newf("negative tax_rate %s", r)
	}
	return r, nil
}

// ScheduleOffsets parses the simulated schedule. Nil means the default one.
func (c Config) ScheduleOffsets() ([]time.Duration, error) {
	if len(c.Status.Schedule) == 0 {
		return nil, nil
	}
	out := make([]time.Duration, len(c.Status.Schedule))
	for i, s := range c.Status.Schedule {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, errors.Wrapf(err, "schedule[%d]", i)
		}
		out[i] = d
	}
	return out, nil
}

// Flags holds the command-line overrides. Only flags given explicitly on
// the command line replace file values.
type Flags struct {
	fs   *flag.FlagSet
	vals Config
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	d := Default()
	fs.StringVar(&f.vals.Store.Backend, "store", d.Store.Backend, "state backend: memory|pebble|badger")
	fs.StringVar(&f.vals.Store.Dir, "store-dir", d.Store.Dir, "state directory for disk backends")
	fs.StringVar(&f.vals.TaxRate, "tax-rate", d.TaxRate, "sales tax rate")
	fs.StringVar(&f.vals.CatalogFile, "catalog", d.CatalogFile, "menu YAML file (built-in menu when empty)")
	fs.StringVar(&f.vals.HistoryDir, "history-dir", d.HistoryDir, "directory for the receipts journal (disabled when empty)")
	fs.StringVar(&f.vals.SnapshotDir, "snapshot-dir", d.SnapshotDir, "snapshot directory")
	fs.StringVar(&f.vals.MetricsAddr, "metrics-addr", d.MetricsAddr, "serve /metrics on this address when set")
	fs.StringVar(&f.vals.Status.Source, "status-source", d.Status.Source, "status events: simulated|kafka|nats")
	fs.StringVar(&f.vals.Status.Kafka.Bootstrap, "kafka-bootstrap", d.Status.Kafka.Bootstrap, "kafka bootstrap servers, e.g. localhost:9092")
	fs.StringVar(&f.vals.Status.Kafka.Topic, "kafka-topic", d.Status.Kafka.Topic, "kafka topic carrying status events")
	fs.StringVar(&f.vals.Status.NATS.URL, "nats-url", d.Status.NATS.URL, "nats server url")
	fs.StringVar(&f.vals.Status.NATS.Prefix, "nats-prefix", d.Status.NATS.Prefix, "nats subject prefix")
	return f
}

// Apply copies every explicitly set flag into cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "store":
			cfg.Store.Backend = f.vals.Store.Backend
		case "store-dir":
			cfg.Store.Dir = f.vals.Store.Dir
		case "tax-rate":
			cfg.TaxRate = f.vals.TaxRate
		case "catalog":
			cfg.CatalogFile = f.vals.CatalogFile
		case "history-dir":
			cfg.HistoryDir = f.vals.HistoryDir
		case "snapshot-dir":
			cfg.SnapshotDir = f.vals.SnapshotDir
		case "metrics-addr":
			cfg.MetricsAddr = f.vals.MetricsAddr
		case "status-source":
			cfg.Status.Source = f.vals.Status.Source
		case "kafka-bootstrap":
			cfg.Status.Kafka.Bootstrap = f.vals.Status.Kafka.Bootstrap
		case "kafka-topic":
			cfg.Status.Kafka.Topic = f.vals.Status.Kafka.Topic
		case "nats-url":
			cfg.Status.NATS.URL = f.vals.Status.NATS.URL
		case "nats-prefix":
			cfg.Status.NATS.Prefix = f.vals.Status.NATS.Prefix
		}
	})
}
