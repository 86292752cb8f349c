package store

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"
)

const defaultConnectTimeout = 10 * time.Second

// Config holds what the adapter needs to open its connection.
type Config struct {
	URL              string        `yaml:"url"`
	DB               string        `yaml:"db"`
	AppName          string        `yaml:"appName"`
	MaxPoolSize      uint64        `yaml:"maxPoolSize"`
	ConnectTimeout   time.Duration `yaml:"connectTimeout"`
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// Options are merged on top of the options derived from the fields above.
	Options *mongoOptions.ClientOptions `yaml:"-"`

	// ClientFactory replaces the default driver-backed client, mostly for tests.
	ClientFactory ClientFactory `yaml:"-"`
}

// LoadConfig reads a yaml config file. ${VAR} references are expanded from
// the environment before parsing.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

func (c Config) clientOptions() *mongoOptions.ClientOptions {
	opts := mongoOptions.Client().ApplyURI(c.URL).SetRegistry(documentRegistry())
	if c.AppName != "" {
		opts.SetAppName(c.AppName)
	}

	if c.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(c.MaxPoolSize)
	}

	if c.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.ConnectTimeout)
	}

	if c.Options != nil {
		opts = mongoOptions.MergeClientOptions(opts, c.Options)
	}

	return opts
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}

	return defaultConnectTimeout
}

func (c Config) clientFactory() ClientFactory {
	if c.ClientFactory != nil {
		return c.ClientFactory
	}

	return NewMongoClient
}

// documentRegistry decodes BSON datetimes as time.Time, the type Create and
// Update hand back, instead of primitive.DateTime.
func documentRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeMapEntry(bson.TypeDateTime, reflect.TypeOf(time.Time{}))
	return reg
}
