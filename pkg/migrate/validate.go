package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir validates the migration files in dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks file names, unique versions and goose Up/Down markers.
// An empty set is valid.
func ValidateFS(fsys fs.FS) error {
	_, err := scan(fsys, true)
	return err
}

// latestVersion returns the highest version in fsys, or "" when there is none.
func latestVersion(fsys fs.FS) (string, error) {
	return scan(fsys, false)
}

func scan(fsys fs.FS, checkBodies bool) (string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "", fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	latest := ""
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return "", fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version := m[1]
		if prev, ok := seen[version]; ok {
			return "", fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name
		if version > latest {
			latest = version
		}

		if !checkBodies {
			continue
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return "", fmt.Errorf("read %q: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return "", fmt.Errorf("migration %q missing %q", name, marker)
			}
		}
	}
	return latest, nil
}
