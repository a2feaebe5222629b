package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Archiver stores copies of resource directories before they are deleted.
type Archiver interface {
	// Archive stores files under name. File keys are slash-separated paths
	// relative to the archived directory.
	Archive(ctx context.Context, name string, files map[string][]byte) error

	// Location describes where archives end up, for user-facing messages.
	Location() string
}

// Config selects and configures an archive backend.
type Config struct {
	Type   string            `json:"type" mapstructure:"type"` // "local", "s3"
	Config map[string]string `json:"config" mapstructure:"config"`
}

// NewArchiver creates an archive backend from configuration.
func NewArchiver(cfg *Config) (Archiver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backup configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		return newLocalArchiver(cfg.Config)
	case "s3":
		return newS3Archiver(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown backup type: %s", cfg.Type)
	}
}

func toSlash(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "/")
}
