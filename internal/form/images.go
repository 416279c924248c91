package form

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kballard/go-shellquote"

	"github.com/jask/orphanreg/internal/preview"
)

// Image is a local file chosen for upload.
type Image struct {
	Path        string
	Name        string
	ContentType string
	Size        int64
}

func (img Image) source() preview.Source {
	return preview.Source{Path: img.Path, Name: img.Name, ContentType: img.ContentType}
}

// LoadImages stats and sniffs each path, keeping the given order.
// Any path that is missing, a directory, or not an image fails the whole batch.
func LoadImages(paths []string) ([]Image, error) {
	out := make([]Image, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, &ValidationError{Field: FieldImages, Reason: fmt.Sprintf("cannot read %s", p)}
		}
		if info.IsDir() {
			return nil, &ValidationError{Field: FieldImages, Reason: fmt.Sprintf("%s is a directory", p)}
		}
		mt, err := mimetype.DetectFile(abs)
		if err != nil {
			return nil, fmt.Errorf("sniff %s: %w", p, err)
		}
		if !strings.HasPrefix(mt.String(), "image/") {
			return nil, &ValidationError{Field: FieldImages, Reason: fmt.Sprintf("%s is not an image (%s)", p, mt.String())}
		}
		out = append(out, Image{
			Path:        abs,
			Name:        filepath.Base(abs),
			ContentType: contentType(mt),
			Size:        info.Size(),
		})
	}
	return out, nil
}

// ExpandPaths splits user input into paths and expands globs and a leading ~.
// Words follow shell quoting, so "My Photos/a.png" or My\ Photos/a.png name
// one file; commas outside quotes also separate paths. Input naming an
// existing file as a whole is taken as one path. Patterns that match nothing
// are kept verbatim so LoadImages can report them.
func ExpandPaths(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if _, err := os.Stat(expandHome(input)); err == nil {
		return []string{expandHome(input)}
	}
	words, err := shellquote.Split(input)
	if err != nil {
		// unterminated quote
		words = strings.Fields(input)
	}
	var out []string
	for _, w := range words {
		parts := []string{w}
		if _, err := os.Stat(expandHome(w)); err != nil {
			parts = strings.Split(w, ",")
		}
		for _, f := range parts {
			f = expandHome(strings.TrimSpace(f))
			if f == "" {
				continue
			}
			if strings.ContainsAny(f, "*?[") {
				matches, err := filepath.Glob(f)
				if err == nil && len(matches) > 0 {
					out = append(out, matches...)
					continue
				}
			}
			out = append(out, f)
		}
	}
	return out
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// contentType drops parameters such as charset.
func contentType(mt *mimetype.MIME) string {
	s := mt.String()
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
