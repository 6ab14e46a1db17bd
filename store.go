package pamedit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultBackupSuffix is appended to a service file's path (or the
// config directory's path, for tree backups) to form its backup path.
const DefaultBackupSuffix = ".backup"

const defaultFileMode = os.FileMode(0o644)

// Store performs file I/O for service files. Every mutating write copies
// the current bytes to a backup first; the original is only replaced by a
// rename of a fully written temp file, so a failed write leaves it intact.
type Store struct {
	// BackupSuffix forms backup paths for files and tree backups.
	BackupSuffix string

	parser *Parser
	writer *Writer
}

// NewStore creates a new store with the default backup suffix.
func NewStore() *Store {
	return &Store{
		BackupSuffix: DefaultBackupSuffix,
		parser:       NewParser(),
		writer:       NewWriter(),
	}
}

// Load reads and parses the service file named service in dir.
func (s *Store) Load(dir, service string) (*ServiceFile, error) {
	path := filepath.Join(dir, service)

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("service %s in %s: %w", service, dir, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	f, err := s.parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	f.Name = service
	f.Path = path
	return f, nil
}

// Save writes f back to f.Path. The current on-disk bytes are copied to
// the backup path first; the new content then lands via a temp file
// renamed over the original.
func (s *Store) Save(f *ServiceFile) error {
	if f.Path == "" {
		return fmt.Errorf("service file has no path")
	}

	if _, err := s.BackupFile(f.Path); err != nil {
		return err
	}

	content, err := s.writer.WriteString(f)
	if err != nil {
		return err
	}

	mode := defaultFileMode
	if st, err := os.Stat(f.Path); err == nil {
		mode = st.Mode().Perm()
	}

	return writeFileAtomic(f.Path, []byte(content), mode)
}

// BackupFile copies the file at path to its backup path and returns it.
// An existing backup is overwritten.
func (s *Store) BackupFile(path string) (string, error) {
	backupPath := path + s.BackupSuffix

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("original file %s does not exist: %w", path, ErrNotFound)
	}

	if err := copyFile(backupPath, path); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}

	return backupPath, nil
}

// BackupTree copies the whole config directory to its backup path. It
// refuses to overwrite an existing backup tree.
func (s *Store) BackupTree(dir string) (string, error) {
	backupDir := dir + s.BackupSuffix

	if _, err := os.Stat(backupDir); err == nil {
		return "", fmt.Errorf("%s: %w", backupDir, ErrBackupExists)
	}

	if err := copyTree(backupDir, dir); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", dir, err)
	}

	return backupDir, nil
}

// RestoreTree replaces the config directory with the contents of its
// backup tree.
func (s *Store) RestoreTree(dir string) error {
	backupDir := dir + s.BackupSuffix

	if _, err := os.Stat(backupDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", backupDir, ErrNoBackup)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	if err := copyTree(dir, backupDir); err != nil {
		return fmt.Errorf("failed to restore %s: %w", dir, err)
	}

	return nil
}

// ListServices returns the service file names in dir, sorted. Dotfiles,
// subdirectories, and backup files are excluded.
func (s *Store) ListServices(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("directory %s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, s.BackupSuffix) {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// writeFileAtomic writes data to a temp file in path's directory, then
// renames it over path. The rename is the only step that touches the
// original.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pamedit-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	mode := defaultFileMode
	if st, err := in.Stat(); err == nil {
		mode = st.Mode().Perm()
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func copyTree(dst, src string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyTree(dstPath, srcPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(dstPath, srcPath); err != nil {
			return err
		}
	}

	return nil
}
