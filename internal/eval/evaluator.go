// Package eval evaluates Pkl project files.
package eval

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/apple/pkl-go/pkl"

	"github.com/picklr-io/tether/internal/ir"
)

// Evaluator handles Pkl evaluation into IR types.
type Evaluator struct {
	projectDir string
}

func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{
		projectDir: projectDir,
	}
}

// LoadProject evaluates a tether.pkl file. When the project directory is a
// Pkl project (it has a PklProject file) its dependencies are resolvable
// from the module.
func (e *Evaluator) LoadProject(ctx context.Context, file string) (*ir.ProjectConfig, error) {
	evaluator, err := e.newEvaluator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var cfg ir.ProjectConfig
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(file), &cfg); err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", file, err)
	}
	return &cfg, nil
}

func (e *Evaluator) newEvaluator(ctx context.Context) (pkl.Evaluator, error) {
	if _, err := os.Stat(filepath.Join(e.projectDir, "PklProject")); err != nil {
		return pkl.NewEvaluator(ctx, pkl.PreconfiguredOptions)
	}

	u, err := url.Parse("file://" + filepath.ToSlash(e.projectDir) + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse project directory URL: %w", err)
	}
	return pkl.NewProjectEvaluator(ctx, u, pkl.PreconfiguredOptions)
}
