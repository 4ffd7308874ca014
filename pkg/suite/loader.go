package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// LoaderConfig bounds what the loader will accept from disk.
type LoaderConfig struct {
	// MaxFileSize is the per-file size limit in bytes (default: 1 MiB).
	MaxFileSize int64

	// Extensions is the list of file extensions loaded from directories.
	Extensions []string
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxFileSize: 1 << 20,
		Extensions:  []string{".yaml", ".yml"},
	}
}

// Loader reads suite documents from the file system.
type Loader struct {
	config *LoaderConfig
}

// NewLoader creates a loader with the given configuration.
func NewLoader(config *LoaderConfig) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	return &Loader{config: config}
}

// LoadFromFile loads and validates one suite document.
func (l *Loader) LoadFromFile(path string) (*Suite, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Path: path, Message: "file not found", Cause: err}
		}
		if os.IsPermission(err) {
			return nil, &LoadError{Path: path, Message: "permission denied", Cause: err}
		}
		return nil, &LoadError{Path: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{Path: path, Message: "not a regular file"}
	}
	if info.Size() > l.config.MaxFileSize {
		return nil, &LoadError{
			Path:    path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.config.MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{Path: path, Message: "file is not valid UTF-8"}
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, &LoadError{Path: path, Message: "invalid YAML", Cause: err}
	}
	if s.Name == "" {
		// Fall back to the file name so ad-hoc documents stay runnable.
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := s.Validate(); err != nil {
		return nil, &LoadError{Path: path, Message: "invalid suite", Cause: err}
	}
	return &s, nil
}

// LoadFromDir loads every suite document under dir (recursively), sorted
// by path for deterministic ordering. Duplicate suite names are an error.
func (l *Loader) LoadFromDir(dir string) ([]*Suite, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if l.hasValidExtension(filepath.Ext(path)) && !strings.HasPrefix(filepath.Base(path), ".") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", dir, err)
	}
	sort.Strings(paths)

	suites := make([]*Suite, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := l.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, &LoadError{
				Path:    path,
				Message: fmt.Sprintf("duplicate suite name %q (already defined in %s)", s.Name, prev),
			}
		}
		seen[s.Name] = path
		suites = append(suites, s)
	}
	return suites, nil
}

func (l *Loader) hasValidExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, valid := range l.config.Extensions {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}
