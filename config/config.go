// Package config loads archive build settings from YAML.
//
// A minimal file:
//
//	writer:
//	  alignment: 4096
//	  metadata_compression: deflate
//	  default_compression: deflate
//	  extensions:
//	    png: none
//	    bin: zstd
//	reader:
//	  max_entry_size: 268435456
//
// Keys that are absent keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meigma/hpak"
	"github.com/meigma/hpak/compression"
)

// WriterConfig holds archive creation settings.
type WriterConfig struct {
	Alignment           uint64                           `yaml:"alignment"`
	MetadataCompression compression.Algorithm            `yaml:"metadata_compression"`
	DefaultCompression  compression.Algorithm            `yaml:"default_compression"`
	MinifyMetadata      bool                             `yaml:"minify_metadata"`
	Concurrency         int                              `yaml:"concurrency"` // 0 uses GOMAXPROCS
	SpoolDir            string                           `yaml:"spool_dir"`
	UseDefaultPolicy    bool                             `yaml:"use_default_policy"`
	Extensions          map[string]compression.Algorithm `yaml:"extensions"`
}

// ReaderConfig holds archive reading settings.
type ReaderConfig struct {
	MaxEntrySize uint64 `yaml:"max_entry_size"` // 0 disables the limit
}

// Config is the top-level configuration.
type Config struct {
	Writer WriterConfig `yaml:"writer"`
	Reader ReaderConfig `yaml:"reader"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Writer: WriterConfig{
			Alignment:           hpak.DefaultAlignment,
			MetadataCompression: compression.Deflate,
			DefaultCompression:  compression.Deflate,
			MinifyMetadata:      true,
			UseDefaultPolicy:    true,
		},
		Reader: ReaderConfig{
			MaxEntrySize: hpak.DefaultMaxEntrySize,
		},
	}
}

// Load reads configuration from r on top of the defaults.
// A nil reader yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if r == nil {
		return cfg, nil
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Load(nil)
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks that every named algorithm is available.
func (c *Config) Validate() error {
	check := func(field string, alg compression.Algorithm) error {
		if !alg.Supported() {
			return fmt.Errorf("config: %s: %w: %s", field, compression.ErrUnsupported, alg)
		}
		return nil
	}
	if err := check("writer.metadata_compression", c.Writer.MetadataCompression); err != nil {
		return err
	}
	if err := check("writer.default_compression", c.Writer.DefaultCompression); err != nil {
		return err
	}
	for ext, alg := range c.Writer.Extensions {
		if err := check("writer.extensions."+ext, alg); err != nil {
			return err
		}
	}
	if c.Writer.Concurrency < 0 {
		return fmt.Errorf("config: writer.concurrency must not be negative, got %d", c.Writer.Concurrency)
	}
	return nil
}

// Policy returns the extension table described by the writer settings.
func (c *Config) Policy() compression.Policy {
	p := compression.Policy{}
	if c.Writer.UseDefaultPolicy {
		p = compression.DefaultPolicy()
	}
	for ext, alg := range c.Writer.Extensions {
		p.Set(ext, alg)
	}
	return p
}

// WriterOptions converts the writer settings to options.
func (c *Config) WriterOptions() []hpak.WriterOption {
	return []hpak.WriterOption{
		hpak.WithAlignment(c.Writer.Alignment),
		hpak.WithMetadataCompression(c.Writer.MetadataCompression),
		hpak.WithDefaultCompression(c.Writer.DefaultCompression),
		hpak.WithMinifyMetadata(c.Writer.MinifyMetadata),
		hpak.WithConcurrency(c.Writer.Concurrency),
		hpak.WithSpoolDir(c.Writer.SpoolDir),
		hpak.WithCompressionPolicy(c.Policy()),
	}
}

// ReaderOptions converts the reader settings to options.
func (c *Config) ReaderOptions() []hpak.ReaderOption {
	return []hpak.ReaderOption{
		hpak.WithMaxEntrySize(c.Reader.MaxEntrySize),
	}
}
