package backup

import (
	"context"
	"fmt"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

type localArchiver struct {
	root string
	fs   billy.Filesystem
	key  []byte
}

func newLocalArchiver(config map[string]string) (Archiver, error) {
	root := config["dir"]
	if root == "" {
		return nil, fmt.Errorf("local backup requires 'dir' configuration")
	}
	return &localArchiver{root: root, fs: osfs.New(root), key: encryptionKey(config)}, nil
}

func (a *localArchiver) Archive(_ context.Context, name string, files map[string][]byte) error {
	for rel, data := range files {
		p := path.Join(name, rel)
		if err := a.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create backup directory for %s: %w", p, err)
		}
		sealed, err := Seal(a.key, data)
		if err != nil {
			return fmt.Errorf("failed to encrypt backup %s: %w", p, err)
		}
		if err := util.WriteFile(a.fs, p, sealed, 0o600); err != nil {
			return fmt.Errorf("failed to write backup %s: %w", p, err)
		}
	}
	return nil
}

func (a *localArchiver) Location() string {
	return a.root
}
