package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	J "cuelang.org/go/encoding/json"
	"cuelang.org/go/encoding/yaml"
	Y "gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaFile string

//go:embed default.yaml
var DEFAULT []byte

var (
	ErrMissingFile   = errors.New("config file does not exist")
	ErrUnknownFormat = errors.New("config file is not .json, .yaml or .yml")
	ErrInvalidConfig = errors.New("invalid config")
)

// Names the embedded configuration in errors.
const defaultSource = "default.yaml"

func invalid(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, source, err)
}

// loader accumulates configuration sources on top of the schema.
type loader struct {
	ctx    *cue.Context
	merged cue.Value
}

func newLoader() (*loader, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaFile)
	if err := schema.Err(); err != nil {
		return nil, invalid("schema", err)
	}
	return &loader{ctx: ctx, merged: schema}, nil
}

func (l *loader) decode(source string, data []byte) (cue.Value, error) {
	switch filepath.Ext(source) {
	case ".json":
		expr, err := J.Extract(source, data)
		if err != nil {
			return cue.Value{}, err
		}
		value := l.ctx.BuildExpr(expr)
		return value, value.Err()
	case ".yaml", ".yml":
		file, err := yaml.Extract(source, data)
		if err != nil {
			return cue.Value{}, err
		}
		value := l.ctx.BuildFile(file)
		return value, value.Err()
	}

	return cue.Value{}, ErrUnknownFormat
}

// add unifies one source into the configuration and checks the result still
// satisfies the schema, though not necessarily concretely.
func (l *loader) add(source string, data []byte) error {
	value, err := l.decode(source, data)
	if err != nil {
		return invalid(source, err)
	}

	l.merged = l.merged.Unify(value)
	if err := l.merged.Err(); err != nil {
		return invalid(source, err)
	}
	if err := l.merged.Validate(); err != nil {
		return invalid(source, err)
	}
	return nil
}

func (l *loader) addFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMissingFile, path)
	}
	if err != nil {
		return invalid(path, err)
	}
	return l.add(path, data)
}

func (l *loader) resolve() (*Config, error) {
	if err := l.merged.Validate(cue.Concrete(true)); err != nil {
		return nil, invalid("resolved config", err)
	}

	data, err := l.merged.MarshalJSON()
	if err != nil {
		return nil, invalid("resolved config", err)
	}

	config := Config{}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, invalid("resolved config", err)
	}
	return &config, nil
}

// Process reads the provided configuration files in order, compiles them,
// and unifies them with the configuration file schema. If no configuration
// files are provided, the default configuration is used.
func Process(configPaths []string) (*Config, error) {
	l, err := newLoader()
	if err != nil {
		return nil, err
	}

	if len(configPaths) == 0 {
		if err := l.add(defaultSource, DEFAULT); err != nil {
			return nil, err
		}
	}

	for _, path := range configPaths {
		if err := l.addFile(path); err != nil {
			return nil, err
		}
	}

	return l.resolve()
}

// Marshal renders a resolved configuration as YAML, in the same shape the
// configuration files use.
func Marshal(config *Config) ([]byte, error) {
	return Y.Marshal(config)
}
