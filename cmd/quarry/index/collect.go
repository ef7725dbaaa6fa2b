package indexcmder

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/quarrylabs/quarry/pkg/chunker"
)

// indexableExts are the file extensions picked up when walking a directory.
var indexableExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".rst":      true,
}

// collectDocuments reads every indexable file under the given paths into
// documents. Files passed explicitly are read regardless of extension.
func collectDocuments(paths []string, collection string) ([]chunker.Document, error) {
	var docs []chunker.Document

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		if !info.IsDir() {
			doc, err := readDocument(path, collection)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && p != path {
					return filepath.SkipDir
				}
				return nil
			}
			if !indexableExts[strings.ToLower(filepath.Ext(p))] {
				return nil
			}

			doc, err := readDocument(p, collection)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
	}

	return docs, nil
}

// readDocument loads one file as a document, deriving the title from the
// first heading (or the filename) and recording heading offsets for section
// attribution.
func readDocument(path, collection string) (chunker.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chunker.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	headings := parseHeadings(content)

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if len(headings) > 0 && headings[0].Level == 1 {
		title = headings[0].Text
	}

	return chunker.Document{
		ID:         path,
		Title:      title,
		Content:    content,
		URL:        path,
		Collection: collection,
		Headings:   headings,
	}, nil
}

// parseHeadings extracts markdown ATX headings with their character offsets.
func parseHeadings(content string) []chunker.Heading {
	var headings []chunker.Heading

	offset := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		if strings.HasPrefix(trimmed, "#") {
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' {
				level++
			}
			text := strings.TrimSpace(trimmed[level:])
			if level <= 6 && text != "" {
				headings = append(headings, chunker.Heading{
					Level:  level,
					Text:   text,
					Offset: offset,
				})
			}
		}
		offset += len(line)
	}

	return headings
}
