package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/MKhiriev/go-field-sync/models"
)

// FileName returns the descriptive name of an exported payload file:
// transfer_<project-slug>_<YYYY-MM-DD>.json.
func FileName(projectName string, at time.Time) string {
	return fmt.Sprintf("transfer_%s_%s.json", Slug(projectName), at.UTC().Format(time.DateOnly))
}

// Slug folds diacritics, lowercases and replaces every run of characters
// other than ASCII letters and digits with a single dash.
func Slug(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "project"
	}
	return slug
}

// WriteFile stores payload unchanged in dir under name and returns the full
// path. Payloads larger than maxBytes fail with [models.ErrCapacity] and
// nothing is written.
func WriteFile(dir, name string, payload []byte, maxBytes int64) (string, error) {
	if maxBytes > 0 && int64(len(payload)) > maxBytes {
		return "", fmt.Errorf("%w: payload is %d bytes, file limit is %d", models.ErrCapacity, len(payload), maxBytes)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create transfer dir: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write transfer file: %w", err)
	}
	return path, nil
}

// ReadFile returns the payload bytes stored at path, refusing files larger
// than maxBytes with [models.ErrCapacity].
func ReadFile(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transfer file: %w", err)
	}
	defer f.Close()

	return ReadAll(f, maxBytes)
}

// ReadAll reads a payload from r, refusing more than maxBytes.
func ReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read transfer payload: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", models.ErrCapacity, maxBytes)
	}
	return raw, nil
}
