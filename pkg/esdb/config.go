package esdb

import (
	"os"

	"github.com/blang/semver"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Servers before this version only understand tick-based durations and the enum consumer strategy in persistent
// subscription settings.
var millisecondSettingsVersion = semver.MustParse("21.10.0")

type Config struct {
	// Address of the server, host:port.
	Address string `yaml:"address"`
	// ServerVersion selects the encoding of persistent subscription settings.
	ServerVersion string `yaml:"serverVersion"`
	// PersistentBufferSize is the number of in-flight events a persistent subscription asks the server for.
	PersistentBufferSize int32 `yaml:"persistentBufferSize"`
	// ControlQueueSize bounds the acks and nacks a persistent subscription queues before Ack and Nack block.
	ControlQueueSize int `yaml:"controlQueueSize"`
	// UnaryMaxRetries is the number of retries of idempotent unary calls on transient failures.
	UnaryMaxRetries uint `yaml:"unaryMaxRetries"`
	Tracing         bool `yaml:"tracing"`

	Logger *logrus.Entry `yaml:"-"`
}

var DefaultConfig = Config{
	Address:              "localhost:2113",
	ServerVersion:        "23.10.0",
	PersistentBufferSize: 10,
	ControlQueueSize:     32,
	UnaryMaxRetries:      3,
}

// WithDefaults returns the config with every unset field taken from DefaultConfig.
func (c Config) WithDefaults() Config {
	if err := mergo.Merge(&c, DefaultConfig); err != nil {
		panic(err)
	}
	if c.Logger == nil {
		c.Logger = logrus.WithField("component", "esdb")
	}
	return c
}

// LoadConfig reads a YAML config file. Unset fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg.WithDefaults(), nil
}

func (c Config) legacySettings() bool {
	v, err := semver.ParseTolerant(c.ServerVersion)
	if err != nil {
		return false
	}
	return v.LT(millisecondSettingsVersion)
}
