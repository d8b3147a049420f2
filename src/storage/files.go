package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/username/tradelens/backend/src/models"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
	".tiff": true,
}

var dateDirPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// StoredFile describes where an image landed on disk.
type StoredFile struct {
	AbsPath  string // filesystem path
	RelPath  string // client-facing path, e.g. processed/2025-07-06/142058_trade.png
	Filename string
}

// FileStore organizes screenshot files: raw uploads under uploadsDir, and
// pipeline output grouped by date under processedDir. Names are kept unique
// with a time prefix plus a counter suffix, never overwritten. Identical
// image content is not deduplicated.
type FileStore struct {
	uploadsDir   string
	processedDir string
	now          func() time.Time
}

func NewFileStore(uploadsDir, processedDir string) (*FileStore, error) {
	for _, dir := range []string{uploadsDir, processedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return &FileStore{uploadsDir: uploadsDir, processedDir: processedDir, now: time.Now}, nil
}

// StoreProcessed places an image under processed/<YYYY-MM-DD>/ with a
// HHMMSS_ prefix on the sanitized original name.
func (s *FileStore) StoreProcessed(r io.Reader, filename string) (StoredFile, error) {
	now := s.now()
	day := now.Format("2006-01-02")
	dir := filepath.Join(s.processedDir, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("creating dated directory: %w", err)
	}

	name := now.Format("150405") + "_" + SanitizeFilename(filename)
	name, err := s.writeUnique(dir, name, r)
	if err != nil {
		return StoredFile{}, err
	}
	return StoredFile{
		AbsPath:  filepath.Join(dir, name),
		RelPath:  path.Join("processed", day, name),
		Filename: name,
	}, nil
}

// StoreUpload keeps the raw upload under uploads/ with a unique name.
func (s *FileStore) StoreUpload(r io.Reader, filename string) (StoredFile, error) {
	name := s.now().Format("20060102_150405") + "_" + SanitizeFilename(filename)
	name, err := s.writeUnique(s.uploadsDir, name, r)
	if err != nil {
		return StoredFile{}, err
	}
	return StoredFile{
		AbsPath:  filepath.Join(s.uploadsDir, name),
		RelPath:  path.Join("uploads", name),
		Filename: name,
	}, nil
}

// writeUnique writes r to dir/name, suffixing _1, _2, ... before the
// extension when the name is taken.
func (s *FileStore) writeUnique(dir, name string, r io.Reader) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		full := filepath.Join(dir, candidate)
		f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if os.IsExist(err) {
				candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
				continue
			}
			return "", fmt.Errorf("creating %s: %w", full, err)
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(full)
			return "", fmt.Errorf("writing %s: %w", full, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("closing %s: %w", full, err)
		}
		return candidate, nil
	}
}

// ListImages returns every stored image, processed tree first, then raw
// uploads, each sorted by path.
func (s *FileStore) ListImages() ([]models.ImageEntry, error) {
	entries := []models.ImageEntry{}

	err := filepath.WalkDir(s.processedDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		rel, relErr := filepath.Rel(s.processedDir, p)
		if relErr != nil {
			return relErr
		}
		entries = append(entries, models.ImageEntry{
			Path:     path.Join("processed", filepath.ToSlash(rel)),
			Filename: d.Name(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking processed directory: %w", err)
	}

	uploads, err := os.ReadDir(s.uploadsDir)
	if err != nil {
		return nil, fmt.Errorf("reading uploads directory: %w", err)
	}
	for _, e := range uploads {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		entries = append(entries, models.ImageEntry{
			Path:     path.Join("uploads", e.Name()),
			Filename: e.Name(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// ResolveUpload maps a bare filename onto the uploads directory, rejecting
// anything that could escape it.
func (s *FileStore) ResolveUpload(filename string) (string, error) {
	if err := validatePathComponent(filename); err != nil {
		return "", err
	}
	return filepath.Join(s.uploadsDir, filename), nil
}

// ResolveProcessed maps a date directory plus filename onto the processed
// tree. The date component must be a literal YYYY-MM-DD directory name.
func (s *FileStore) ResolveProcessed(date, filename string) (string, error) {
	if !dateDirPattern.MatchString(date) {
		return "", fmt.Errorf("invalid date directory %q", date)
	}
	if err := validatePathComponent(filename); err != nil {
		return "", err
	}
	return filepath.Join(s.processedDir, date, filename), nil
}

func validatePathComponent(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

// SanitizeFilename strips any path components and reduces the name to a safe
// character set.
func SanitizeFilename(name string) string {
	base := filepath.Base(filepath.Clean(name))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || strings.Trim(out, "._") == "" {
		return "image"
	}
	return out
}
