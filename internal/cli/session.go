package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picklr-io/tether/internal/api"
	"github.com/picklr-io/tether/internal/backup"
	"github.com/picklr-io/tether/internal/config"
	"github.com/picklr-io/tether/internal/engine"
	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/kinds"
)

// session is everything a remote command needs.
type session struct {
	settings *config.Settings
	project  *ir.ProjectConfig
	engine   *engine.Engine
}

func newSession(cmd *cobra.Command) (*session, error) {
	if err := config.ValidateConfig(true); err != nil {
		return nil, err
	}
	settings, err := config.Current()
	if err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	project, err := config.LoadProject(cmd.Context(), wd)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	client, err := api.New(settings.APIOrigin, settings.ServiceToken, api.WithUserAgent("tether/"+Version))
	if err != nil {
		return nil, err
	}
	eng := engine.NewEngine(client)
	eng.Concurrency = settings.Concurrency

	return &session{settings: settings, project: project, engine: eng}, nil
}

// indexDir returns --dir when given, else the kind's directory in the project.
func (s *session) indexDir(k *kinds.Kind, dir string) string {
	if dir != "" {
		return dir
	}
	return config.IndexDir(s.project, k.Name, k.Dir)
}

// resourceDir returns --dir when given, else key's directory in the index.
func (s *session) resourceDir(k *kinds.Kind, key, dir string) string {
	if dir != "" {
		return dir
	}
	return k.ResourceDir(s.indexDir(k, ""), key)
}

// archiver builds the backup backend for pruned entries: S3 when a bucket
// is given on the command line, else whatever the config file selects.
func (s *session) archiver(bucket string) (backup.Archiver, error) {
	if bucket != "" {
		return backup.NewArchiver(&backup.Config{Type: "s3", Config: map[string]string{"bucket": bucket}})
	}
	if s.settings.Backup.Type == "" {
		return nil, nil
	}
	return backup.NewArchiver(&s.settings.Backup)
}

// remoteFlags are the API parameters shared by every kind subcommand.
type remoteFlags struct {
	environment string
	branch      string
	hide        bool
}

func (f *remoteFlags) register(cmd *cobra.Command, hide bool) {
	cmd.Flags().StringVar(&f.environment, "environment", "", "environment to read from or write to (default from config)")
	cmd.Flags().StringVar(&f.branch, "branch", "", "branch to read from or write to")
	if hide {
		cmd.Flags().BoolVar(&f.hide, "hide-uncommitted-changes", false, "only show committed changes")
	}
}

func (f *remoteFlags) params(s *session) api.Params {
	env := f.environment
	if env == "" {
		env = s.settings.Environment
	}
	return api.Params{Environment: env, Branch: f.branch, HideUncommittedChanges: f.hide}
}

// target resolves the positional key and --all into one choice.
func target(args []string, all bool) (string, error) {
	switch {
	case len(args) == 1 && all:
		return "", fmt.Errorf("cannot use a key together with --all")
	case len(args) == 1:
		return args[0], nil
	case all:
		return "", nil
	default:
		return "", fmt.Errorf("either a key or --all is required")
	}
}
