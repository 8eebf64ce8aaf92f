package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration writes <dir>/<version>_<name>.sql. The version is the
// current UTC time, bumped past the newest existing file so two migrations
// created in the same second still sort.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := nameSanitizeRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	existing, err := ListFiles(os.DirFS(dir))
	if err != nil {
		return "", err
	}

	version, _ := strconv.ParseInt(time.Now().UTC().Format(versionLayout), 10, 64)
	if n := len(existing); n > 0 && existing[n-1].Version >= version {
		next, err := time.Parse(versionLayout, strconv.FormatInt(existing[n-1].Version, 10))
		if err != nil {
			return "", fmt.Errorf("parse latest version: %w", err)
		}
		version, _ = strconv.ParseInt(next.Add(time.Second).Format(versionLayout), 10, 64)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, safe))
	body := fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
SELECT 'up: %[1]s';
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 'down: %[1]s';
-- +goose StatementEnd
`, safe)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(body); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}
