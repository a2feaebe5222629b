package ir

// ProjectConfig is the per-repository project file (tether.json or tether.pkl).
type ProjectConfig struct {
	// ResourcesDir is the root under which each kind's index directory lives.
	ResourcesDir string `json:"resources_dir" mapstructure:"resources_dir" pkl:"resourcesDir"`
	// Dirs overrides the index directory for individual kinds, keyed by kind name.
	Dirs map[string]string `json:"dirs,omitempty" mapstructure:"dirs" pkl:"dirs"`
	// Root is the directory the project file was found in. Not persisted.
	Root string `json:"-" mapstructure:"-" pkl:"-"`
}
