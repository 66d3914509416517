// Package localization serves the bot's user-facing strings from JSON string
// tables, one file per language.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

// DefaultLanguage is used when a key is missing in the requested language.
const DefaultLanguage = "en"

//go:embed locales/*.json
var embedded embed.FS

// Localizer holds one string table per language code.
type Localizer struct {
	mu     sync.RWMutex
	tables map[string]map[string]string
}

// NewLocalizer returns a Localizer with the translations bundled into the binary.
func NewLocalizer() (*Localizer, error) {
	return NewLocalizerFS(embedded, "locales")
}

// NewLocalizerFS loads every "<lang>.json" file found in dir of fsys.
func NewLocalizerFS(fsys fs.FS, dir string) (*Localizer, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list locales in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no locale files in %s", dir)
	}

	tables := make(map[string]map[string]string, len(matches))
	for _, name := range matches {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", name, err)
		}
		table := map[string]string{}
		if err := json.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", name, err)
		}
		tables[strings.TrimSuffix(path.Base(name), ".json")] = table
	}

	return &Localizer{tables: tables}, nil
}

func (l *Localizer) lookup(lang, key string) (string, bool) {
	v, ok := l.tables[lang][key]
	return v, ok
}

// GetString returns the string for key in lang, then in DefaultLanguage, and
// finally the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if v, ok := l.lookup(lang, key); ok {
		return v
	}
	if v, ok := l.lookup(DefaultLanguage, key); ok {
		return v
	}
	return key
}

// Supports reports whether translations exist for lang.
func (l *Localizer) Supports(lang string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.tables[lang]
	return ok
}

// Language picks the best supported language for a client language code such
// as "uk" or "en-US".
func (l *Localizer) Language(code string) string {
	code = strings.ToLower(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if l.Supports(code) {
		return code
	}
	return DefaultLanguage
}
