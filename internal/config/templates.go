package config

import (
	"errors"
	"os"
	"path/filepath"

	"ytc/internal/broadcast"
	"ytc/internal/schedule"
)

// LoadTemplates reads and validates a broadcasts file. Dir is set to the
// file's directory so thumbnails resolve relative to it.
func LoadTemplates(path string) (broadcast.TemplateSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return broadcast.TemplateSet{}, broadcast.NotFoundf("templates file %s not found", path)
		}
		return broadcast.TemplateSet{}, err
	}
	var set broadcast.TemplateSet
	if err := decodeStrict(path, b, &set); err != nil {
		return broadcast.TemplateSet{}, broadcast.Parsef("templates %s: %v", path, err)
	}
	if err := ValidateTemplates(set); err != nil {
		return broadcast.TemplateSet{}, broadcast.Parsef("templates %s: %v", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	set.Dir = filepath.Dir(abs)
	return set, nil
}

// ValidateTemplates checks every template and that ids are unique.
func ValidateTemplates(set broadcast.TemplateSet) error {
	seen := map[string]bool{}
	for _, t := range set.Templates {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.ID] {
			return broadcast.Validationf("duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
		if _, err := schedule.ParseClock(t.StartTime); err != nil {
			return broadcast.Validationf("template %s: %v", t.ID, err)
		}
	}
	return nil
}
