package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/picklr-io/tether/internal/eval"
	"github.com/picklr-io/tether/internal/ir"
)

// Project file names, in lookup order.
const (
	ProjectFileJSON = "tether.json"
	ProjectFilePkl  = "tether.pkl"
)

// ErrNoProject is returned by FindProject when no project file exists in
// start or any of its parents.
var ErrNoProject = errors.New("no tether project file found")

// FindProject walks up from start looking for a project file and returns
// its path.
func FindProject(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range []string{ProjectFileJSON, ProjectFilePkl} {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProject
		}
		dir = parent
	}
}

// LoadProject finds and reads the project file above start. Without one,
// start itself is the project root with default settings.
func LoadProject(ctx context.Context, start string) (*ir.ProjectConfig, error) {
	path, err := FindProject(start)
	if errors.Is(err, ErrNoProject) {
		root, err := filepath.Abs(start)
		if err != nil {
			return nil, err
		}
		return &ir.ProjectConfig{ResourcesDir: ".", Root: root}, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg *ir.ProjectConfig
	switch filepath.Base(path) {
	case ProjectFilePkl:
		cfg, err = eval.NewEvaluator(filepath.Dir(path)).LoadProject(ctx, path)
		if err != nil {
			return nil, err
		}
	default:
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		cfg = &ir.ProjectConfig{}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}

	if cfg.ResourcesDir == "" {
		cfg.ResourcesDir = "."
	}
	cfg.Root = filepath.Dir(path)
	return cfg, nil
}

// WriteProject writes a tether.json into dir. It refuses to overwrite an
// existing project file unless force is set.
func WriteProject(dir string, cfg *ir.ProjectConfig, force bool) (string, error) {
	path := filepath.Join(dir, ProjectFileJSON)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists", path)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("resources_dir", cfg.ResourcesDir)
	if len(cfg.Dirs) > 0 {
		v.Set("dirs", cfg.Dirs)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// IndexDir returns the absolute index directory for a kind.
func IndexDir(p *ir.ProjectConfig, kind, defaultDir string) string {
	dir := defaultDir
	if override, ok := p.Dirs[kind]; ok && override != "" {
		dir = override
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(p.Root, p.ResourcesDir, dir)
}
