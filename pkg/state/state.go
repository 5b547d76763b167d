package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the canonical runtime folder layout under a data root.
type Paths struct {
	Root      string
	Tmp       string
	Retention string
}

// PathsVar is populated once at startup by EnsureDataDirs.
var PathsVar Paths

// EnsureDataDirs ensures the runtime folder layout exists under the provided
// data root. It rejects symlinked or group/other-writable directories and
// verifies the process can actually write there.
func EnsureDataDirs(root string) error {
	tmp := filepath.Join(root, ".tmp")
	retention := filepath.Join(root, "state", "retention")

	for _, p := range []string{root, tmp, retention} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", p, err)
		}
		if fi, err := os.Lstat(p); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", p)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", p)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", p)
			}
		}
		if err := os.MkdirAll(p, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", p, err)
		}
		if fi2, err := os.Lstat(p); err == nil {
			if fi2.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink after creation: %s", p)
			}
		}
		probe := filepath.Join(p, ".writecheck")
		if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
			return fmt.Errorf("path not writable: %s: %w", p, err)
		}
		_ = os.Remove(probe)
	}

	PathsVar = Paths{Root: root, Tmp: tmp, Retention: retention}
	return nil
}
