package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"chiller-forecast/internal/analytics/domain/statistic"
	artifact "chiller-forecast/internal/artifact/domain"
)

const (
	defaultBackupDir = "_backup"
	defaultRetention = 5
	backupStamp      = "20060102_150405"
)

// Store keeps artifacts as files in one directory. Every write goes through a temporary
// file that is verified before the previous file is archived and replaced.
type Store struct {
	dir       string
	backupDir string
	retention int
	formats   map[string]Format
	clock     statistic.Clock
	logger    *log.Logger
}

// Option configures the store.
type Option func(*Store)

// WithFormat sets the encoding of one artifact.
func WithFormat(name string, format Format) Option {
	return func(s *Store) {
		s.formats[name] = format
	}
}

// WithBackupDir overrides the archive directory (default <dir>/_backup).
func WithBackupDir(dir string) Option {
	return func(s *Store) {
		if dir != "" {
			s.backupDir = dir
		}
	}
}

// WithRetention sets how many archived versions are kept per artifact.
func WithRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithClock sets the clock used for backup names.
func WithClock(clock statistic.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger enables event logging.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New constructs a Store rooted at dir.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:       dir,
		backupDir: filepath.Join(dir, defaultBackupDir),
		retention: defaultRetention,
		formats:   make(map[string]Format),
		clock:     statistic.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file path of a table artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+s.format(name).Ext())
}

func (s *Store) format(name string) Format {
	if f, ok := s.formats[name]; ok {
		return f
	}
	return DefaultFormat
}

// Read loads a table artifact.
func (s *Store) Read(ctx context.Context, name string) (artifact.Table, error) {
	_ = ctx
	if err := validName(name); err != nil {
		return artifact.Table{}, err
	}
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return artifact.Table{}, artifact.ErrNotFound
	}
	if err != nil {
		return artifact.Table{}, err
	}
	table, err := s.format(name).decode(data)
	if err != nil {
		return artifact.Table{}, fmt.Errorf("filestore: decode %s: %w", name, err)
	}
	return table, nil
}

// Write encodes and safely replaces a table artifact.
func (s *Store) Write(ctx context.Context, name string, table artifact.Table) error {
	_ = ctx
	if err := validName(name); err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	format := s.format(name)
	data, err := format.encode(table)
	if err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	verify := func(written []byte) error {
		decoded, err := format.decode(written)
		if err != nil {
			return err
		}
		if decoded.Len() != table.Len() || len(decoded.Columns) != len(table.Columns) {
			return fmt.Errorf("verify: got %d rows x %d columns, want %d x %d",
				decoded.Len(), len(decoded.Columns), table.Len(), len(table.Columns))
		}
		return nil
	}
	if err := s.safeWrite(s.Path(name), data, verify); err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	s.logf("event=artifact_written name=%s rows=%d path=%s", name, table.Len(), s.Path(name))
	return nil
}

// ReadBlob loads a binary artifact; name carries its own extension.
func (s *Store) ReadBlob(ctx context.Context, name string) ([]byte, error) {
	_ = ctx
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, artifact.ErrNotFound
	}
	return data, err
}

// WriteBlob safely replaces a binary artifact.
func (s *Store) WriteBlob(ctx context.Context, name string, data []byte) error {
	_ = ctx
	if err := validName(name); err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	verify := func(written []byte) error {
		if !bytes.Equal(written, data) {
			return errors.New("verify: content mismatch")
		}
		return nil
	}
	if err := s.safeWrite(filepath.Join(s.dir, name), data, verify); err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	s.logf("event=artifact_written name=%s bytes=%d", name, len(data))
	return nil
}

// safeWrite writes to a temporary file, verifies it, archives the current file and renames
// the temporary file into place. The current file is untouched when any step fails.
func (s *Store) safeWrite(path string, data []byte, verify func([]byte) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	written, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}
	if err := verify(written); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.archive(path); err != nil {
			return fmt.Errorf("archive previous: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// archive copies path into the backup directory as <stem>_backup_<stamp><ext> and prunes
// archives beyond the retention.
func (s *Store) archive(path string) error {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	prefix := stem + "_backup_"
	names, err := s.backupNames(prefix, ext)
	if err != nil {
		return err
	}
	stamp := s.clock.Now().Format(backupStamp)
	target := filepath.Join(s.backupDir, prefix+stamp+ext)
	seq := -1
	for _, n := range names {
		if k := parseBackupKey(n, prefix, ext); k.stamp == stamp && k.seq > seq {
			seq = k.seq
		}
	}
	if seq >= 0 {
		target = filepath.Join(s.backupDir, fmt.Sprintf("%s%s_%d%s", prefix, stamp, seq+1, ext))
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return err
	}
	s.logf("event=artifact_backup path=%s backup=%s", path, target)
	return s.prune(prefix, ext)
}

func (s *Store) prune(prefix, ext string) error {
	names, err := s.backupNames(prefix, ext)
	if err != nil {
		return err
	}
	if len(names) <= s.retention {
		return nil
	}
	for _, name := range names[:len(names)-s.retention] {
		if err := os.Remove(filepath.Join(s.backupDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Backups lists the archived versions of a table artifact, oldest first.
func (s *Store) Backups(name string) ([]string, error) {
	names, err := s.backupNames(name+"_backup_", s.format(name).Ext())
	if err != nil {
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(s.backupDir, n)
	}
	return out, nil
}

// backupNames returns the backup file names for prefix, oldest first.
func (s *Store) backupNames(prefix, ext string) ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	sortBackups(names, prefix, ext)
	return names, nil
}

type backupKey struct {
	stamp string
	seq   int
}

// parseBackupKey splits <prefix><stamp>[_<seq>]<ext>. A name without suffix has seq 0.
func parseBackupKey(name, prefix, ext string) backupKey {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
	if len(stamp) > len(backupStamp) && stamp[len(backupStamp)] == '_' {
		if v, err := strconv.Atoi(stamp[len(backupStamp)+1:]); err == nil {
			return backupKey{stamp: stamp[:len(backupStamp)], seq: v}
		}
	}
	return backupKey{stamp: stamp}
}

// sortBackups orders backup names by stamp, then by numeric collision suffix, so
// <stamp>_10 sorts after <stamp>_2.
func sortBackups(names []string, prefix, ext string) {
	keys := make(map[string]backupKey, len(names))
	for _, n := range names {
		keys[n] = parseBackupKey(n, prefix, ext)
	}
	sort.SliceStable(names, func(i, j int) bool {
		a, b := keys[names[i]], keys[names[j]]
		if a.stamp != b.stamp {
			return a.stamp < b.stamp
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return names[i] < names[j]
	})
}

func (s *Store) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", artifact.ErrInvalidName, name)
	}
	return nil
}

var _ artifact.Repository = (*Store)(nil)
