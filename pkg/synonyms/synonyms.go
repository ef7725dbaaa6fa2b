// Package synonyms loads the term-to-synonyms mapping used by query
// transformation.
package synonyms

import (
	"errors"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

// Mapping maps a lowercased term to its synonym strings.
type Mapping map[string][]string

// mappingFile is the TOML shape of a synonym file:
//
//	[synonyms]
//	error = ["failure", "fault"]
//	config = ["configuration", "settings"]
type mappingFile struct {
	Synonyms map[string][]string `toml:"synonyms"`
}

// Load reads the synonym mapping from path, once at startup. A missing or
// malformed file degrades to an empty mapping so search proceeds without
// query transformation; it never fails startup.
func Load(path string, logger *zap.Logger) Mapping {
	if path == "" {
		return Mapping{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("reading synonym file failed, query transformation disabled",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return Mapping{}
	}

	var file mappingFile
	if err := toml.Unmarshal(data, &file); err != nil {
		logger.Warn("malformed synonym file, query transformation disabled",
			zap.String("path", path),
			zap.Error(err),
		)
		return Mapping{}
	}

	mapping := make(Mapping, len(file.Synonyms))
	for term, syns := range file.Synonyms {
		mapping[strings.ToLower(term)] = syns
	}

	logger.Debug("loaded synonym mapping",
		zap.String("path", path),
		zap.Int("terms", len(mapping)),
	)

	return mapping
}

// Lookup returns the synonyms for a term, or nil when none are known.
func (m Mapping) Lookup(term string) []string {
	return m[strings.ToLower(term)]
}
