package main

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/docmap/errors"
	"github.com/wippyai/docmap/store/natsstore"
)

// Config is the file form of the command line switches.
type Config struct {
	Input    string     `yaml:"input"`
	Output   string     `yaml:"output"`
	From     string     `yaml:"from"`
	To       string     `yaml:"to"`
	NATS     NATSConfig `yaml:"nats"`
	Compress bool       `yaml:"compress"`
}

// NATSConfig selects a natsstore server to read documents from.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LoadConfig reads a YAML config file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config")
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse "+path)
	}
	return cfg, nil
}

var extCodecs = map[string]string{
	".json":    "json",
	".msgpack": "msgpack",
	".mpk":     "msgpack",
	".yaml":    "yaml",
	".yml":     "yaml",
	".pb":      "protobuf",
	".binpb":   "protobuf",
}

// codecForPath guesses a codec from a file extension, ignoring a trailing
// .zst.
func codecForPath(path string) string {
	path = strings.TrimSuffix(path, ".zst")
	return extCodecs[strings.ToLower(filepath.Ext(path))]
}

// applyDefaults fills what neither the file nor the flags set.
func (c *Config) applyDefaults() {
	if c.From == "" {
		c.From = codecForPath(c.Input)
	}
	if c.From == "" {
		c.From = "json"
	}
	if c.To == "" {
		c.To = codecForPath(c.Output)
	}
	if c.To == "" {
		c.To = c.From
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = natsstore.DefaultSubjectPrefix
	}
	if c.NATS.Timeout <= 0 {
		c.NATS.Timeout = natsstore.DefaultTimeout
	}
}
