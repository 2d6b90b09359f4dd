package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/recast/pkg/reform"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = ".recast.yaml"

type File struct {
	Transform Transform `yaml:"transform"`
}

// Transform mirrors the flat transform options plus the declared record
// template. Key lists are comma-separated strings.
type Transform struct {
	RemoveKeys   string `yaml:"remove_keys,omitempty"`
	KeepKeys     string `yaml:"keep_keys,omitempty"`
	RenewRecord  bool   `yaml:"renew_record,omitempty"`
	RenewTimeKey string `yaml:"renew_time_key,omitempty"`
	EnableRuby   bool   `yaml:"enable_ruby,omitempty"`
	AutoTypecast bool   `yaml:"auto_typecast,omitempty"`
	EvalTimeout  string `yaml:"eval_timeout,omitempty"`

	Record map[string]any `yaml:"record"`
}

func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

// Build turns the declaration into a ready reformer. Invalid option
// combinations abort here, at configuration time.
func (t Transform) Build() (*reform.Reformer, error) {
	cfg := reform.Config{
		RemoveKeys:   reform.SplitKeys(t.RemoveKeys),
		KeepKeys:     reform.SplitKeys(t.KeepKeys),
		RenewRecord:  t.RenewRecord,
		RenewTimeKey: t.RenewTimeKey,
		EnableRuby:   t.EnableRuby,
		AutoTypecast: t.AutoTypecast,
	}
	if t.EvalTimeout != "" {
		d, err := time.ParseDuration(t.EvalTimeout)
		if err != nil {
			return nil, errors.Wrap(err, "parse eval_timeout")
		}
		cfg.EvalTimeout = d
	}

	record := t.Record
	if record == nil {
		record = map[string]any{}
	}
	return reform.New(cfg, record)
}
