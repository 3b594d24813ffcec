package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobeaver/beaver-kit/config"
	"gopkg.in/yaml.v3"

	"github.com/ungine/layeredfs"
)

// envPrefix namespaces every environment variable read by the tool.
const envPrefix = "UPKF_"

// Config holds defaults read from the environment (UPKF_LOG_LEVEL, ...).
// Command-line flags take precedence.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL,default:warn"`
	LogFormat   string `env:"LOG_FORMAT,default:text"`
	Compression string `env:"COMPRESSION,default:none"`
	Jobs        int    `env:"JOBS,default:0"`
	Verify      bool   `env:"VERIFY,default:true"`
	Stack       string `env:"STACK"`
}

func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("load environment config: %w", err)
	}
	return cfg, nil
}

var errNoLayers = errors.New("no layers: pass --layer or --stack")

// StackFile describes a layer stack, front (highest priority) first.
//
//	verify: true
//	layers:
//	  - mods/override
//	  - path: content/base.upkf
//	  - path: vendor/pak01_dir.vpk
type StackFile struct {
	Verify *bool        `yaml:"verify"`
	Layers []StackLayer `yaml:"layers"`
}

// StackLayer is one entry of a stack file. A bare string is accepted as
// shorthand for {path: ...}.
type StackLayer struct {
	Path string `yaml:"path"`
}

// UnmarshalYAML accepts a scalar path or a mapping.
func (l *StackLayer) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		l.Path = node.Value
		return nil
	}
	type plain StackLayer
	return node.Decode((*plain)(l))
}

// loadStack reads a stack file. Relative layer paths are resolved against
// the directory of the stack file.
func loadStack(path string) (*StackFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stack file: %w", err)
	}
	var sf StackFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse stack file %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, l := range sf.Layers {
		if l.Path == "" {
			return nil, fmt.Errorf("stack file %s: layer %d has no path", path, i)
		}
		if !filepath.IsAbs(l.Path) {
			sf.Layers[i].Path = filepath.Join(base, l.Path)
		}
	}
	return &sf, nil
}

// buildFS stacks the layers of a stack file followed by extra layer paths.
// Both lists are front first.
func buildFS(stack *StackFile, extra []string, verify bool, opts ...layeredfs.Option) (*layeredfs.FS, error) {
	if stack != nil && stack.Verify != nil {
		verify = *stack.Verify
	}
	opts = append(opts, layeredfs.WithVerify(verify))
	lfs := layeredfs.New(opts...)

	var paths []string
	if stack != nil {
		for _, l := range stack.Layers {
			paths = append(paths, l.Path)
		}
	}
	paths = append(paths, extra...)
	if len(paths) == 0 {
		return nil, errNoLayers
	}
	for _, p := range paths {
		if _, err := lfs.AddLayer(p, false); err != nil {
			return nil, fmt.Errorf("add layer %s: %w", p, err)
		}
	}
	return lfs, nil
}
