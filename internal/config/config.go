package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"github.com/tiendc/go-deepcopy"
)

// DefaultEnvPrefix is the environment prefix read by Load.
const DefaultEnvPrefix = "FILEDB_"

type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Index   IndexConfig   `mapstructure:"index"`
	Query   QueryConfig   `mapstructure:"query"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`  // DEBUG, INFO, WARN, ERROR
	Format    string `mapstructure:"format"` // json, text
	AddSource bool   `mapstructure:"add_source"`
}

type StorageConfig struct {
	Workers  int         `mapstructure:"workers"`   // Bulk operation concurrency (FindAll, InsertAll, RemoveAll)
	DirMode  os.FileMode `mapstructure:"dir_mode"`  // Permissions for collection directories
	FileMode os.FileMode `mapstructure:"file_mode"` // Permissions for document files
}

type BloomConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	FalsePositiveRate float64 `mapstructure:"false_positive_rate"`
}

type IndexConfig struct {
	Dir         string      `mapstructure:"dir"`         // Per-collection artifact directory name
	Compression string      `mapstructure:"compression"` // none | snappy
	Bloom       BloomConfig `mapstructure:"bloom"`
	CacheSize   int         `mapstructure:"cache_size"` // Loaded indexes kept in memory (0 = no cache)
}

type QueryConfig struct {
	UseIndexes bool `mapstructure:"use_indexes"` // Resolve equality criteria through indexes when present
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Storage: StorageConfig{
			Workers:  runtime.NumCPU(),
			DirMode:  0o755,
			FileMode: 0o644,
		},
		Index: IndexConfig{
			Dir:         ".index",
			Compression: "none",
			Bloom: BloomConfig{
				Enabled:           true,
				FalsePositiveRate: 0.01,
			},
			CacheSize: 64,
		},
		Query: QueryConfig{
			UseIndexes: true,
		},
	}
}

// Validate checks the values Load and callers may have changed.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Storage.Workers <= 0 {
		return fmt.Errorf("storage.workers must be positive, got %d", c.Storage.Workers)
	}
	if c.Index.Dir == "" || !strings.HasPrefix(c.Index.Dir, ".") {
		return fmt.Errorf("index.dir must be a hidden directory name, got %q", c.Index.Dir)
	}
	if strings.ContainsAny(c.Index.Dir, `/\`) {
		return fmt.Errorf("index.dir must be a single path element, got %q", c.Index.Dir)
	}
	switch c.Index.Compression {
	case "none", "snappy":
	default:
		return fmt.Errorf("index.compression must be none or snappy, got %q", c.Index.Compression)
	}
	if c.Index.Bloom.Enabled && (c.Index.Bloom.FalsePositiveRate <= 0 || c.Index.Bloom.FalsePositiveRate >= 1) {
		return fmt.Errorf("index.bloom.false_positive_rate must be in (0, 1), got %v", c.Index.Bloom.FalsePositiveRate)
	}
	if c.Index.CacheSize < 0 {
		return fmt.Errorf("index.cache_size must not be negative")
	}
	return nil
}

// Clone returns a deep copy so callers can keep mutating their own Config.
func (c *Config) Clone() *Config {
	clone := &Config{}
	if err := deepcopy.Copy(clone, c); err != nil {
		// Config holds only plain values; fall back to a shallow copy.
		shallow := *c
		return &shallow
	}
	return clone
}

// Load reads an optional config file and environment variables on top of
// DefaultConfig. path may be empty. Environment keys are mapped by stripping
// prefix, lower-casing and turning "__" into "." (FILEDB_INDEX__CACHE_SIZE ->
// index.cache_size).
func Load(prefix, path string) (*Config, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		key, value, ok := strings.Cut(envStr, "=")
		if !ok || !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		propKey := strings.TrimPrefix(key, prefixUpper)
		propKey = strings.ToLower(strings.ReplaceAll(propKey, "__", "."))
		propKey = strings.TrimPrefix(propKey, ".")
		if propKey == "" {
			continue
		}
		v.Set(propKey, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.add_source", d.Log.AddSource)
	v.SetDefault("storage.workers", d.Storage.Workers)
	v.SetDefault("storage.dir_mode", uint32(d.Storage.DirMode))
	v.SetDefault("storage.file_mode", uint32(d.Storage.FileMode))
	v.SetDefault("index.dir", d.Index.Dir)
	v.SetDefault("index.compression", d.Index.Compression)
	v.SetDefault("index.bloom.enabled", d.Index.Bloom.Enabled)
	v.SetDefault("index.bloom.false_positive_rate", d.Index.Bloom.FalsePositiveRate)
	v.SetDefault("index.cache_size", d.Index.CacheSize)
	v.SetDefault("query.use_indexes", d.Query.UseIndexes)
}
