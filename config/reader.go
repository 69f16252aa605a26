package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/pcindex/logging"
)

// Read reads a config from the given file, expanding environment variables first.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
// Sections missing from the input keep their Default values. A nil logger discards output.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	if logger == nil {
		logger = logging.NewBlankLogger("config")
	}
	cfg := Default()
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	cfg.ConfigFilePath = originalPath
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debugw("read config", "path", originalPath, "dim", cfg.Index.Dim, "log_level", cfg.Log.Level)
	return cfg, nil
}
