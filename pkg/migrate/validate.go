package migrate

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// File is one goose SQL migration on disk.
type File struct {
	Version int64
	Name    string
}

// ListFiles returns the migrations in fsys ordered by version. It fails on
// badly named files and duplicate versions.
func ListFiles(fsys fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := map[int64]string{}
	var files []File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, name)
		}
		seen[version] = name
		files = append(files, File{Version: version, Name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ValidateDir checks the migrations under dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks file names and that every file has an Up section with at
// least one statement and a Down section.
func ValidateFS(fsys fs.FS) error {
	files, err := ListFiles(fsys)
	if err != nil {
		return err
	}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f.Name)
		if err != nil {
			return fmt.Errorf("read %q: %w", f.Name, err)
		}
		if err := checkSections(f.Name, string(data)); err != nil {
			return err
		}
	}
	return nil
}

func checkSections(name, content string) error {
	var section string
	upStatements := 0
	hasDown := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "-- +goose Up"):
			section = "up"
		case strings.HasPrefix(line, "-- +goose Down"):
			section = "down"
			hasDown = true
		case line == "" || strings.HasPrefix(line, "--"):
		case section == "up":
			upStatements++
		case section == "":
			return fmt.Errorf("migration %q has SQL before \"-- +goose Up\"", name)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %q: %w", name, err)
	}
	if section == "" {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	if upStatements == 0 {
		return fmt.Errorf("migration %q has an empty Up section", name)
	}
	if !hasDown {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	return nil
}
