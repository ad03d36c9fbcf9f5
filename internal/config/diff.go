package config

import (
	"reflect"
	"sort"
	"strings"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

// TemplateChange lists template ids that differ between two sets.
type TemplateChange struct {
	Added   []string
	Removed []string
	Changed []string
}

func (c TemplateChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Fields renders the change for structured logging.
func (c TemplateChange) Fields() []logx.Field {
	return []logx.Field{
		logx.Strings("added", c.Added),
		logx.Strings("removed", c.Removed),
		logx.Strings("changed", c.Changed),
	}
}

// SummarizeTemplateChange compares two template sets by id. Ids are sorted.
func SummarizeTemplateChange(oldSet, newSet broadcast.TemplateSet) TemplateChange {
	index := func(s broadcast.TemplateSet) map[string]broadcast.Template {
		m := make(map[string]broadcast.Template, len(s.Templates))
		for _, t := range s.Templates {
			m[t.ID] = t
		}
		return m
	}
	before, after := index(oldSet), index(newSet)

	var c TemplateChange
	for id, t := range after {
		prev, ok := before[id]
		switch {
		case !ok:
			c.Added = append(c.Added, id)
		case !reflect.DeepEqual(prev, t):
			c.Changed = append(c.Changed, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Strings(c.Changed)
	return c
}

// SummarizeConfigChange returns the changed top-level sections and safe
// fields for logging. Tokens and DSNs are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled))
	}
	if !reflect.DeepEqual(oldCfg.YouTube, newCfg.YouTube) {
		changed = append(changed, "youtube")
		fields = append(fields,
			logx.String("youtube.user", newCfg.YouTube.User),
			logx.String("youtube.timeout", newCfg.YouTube.Timeout))
	}
	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		changed = append(changed, "timezone")
		fields = append(fields, logx.String("timezone", newCfg.Timezone))
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if newCfg.Storage != nil {
			fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
		}
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		if newCfg.Notifier != nil {
			fields = append(fields,
				logx.Bool("notifier.enabled", newCfg.Notifier.Enabled),
				logx.Bool("notifier.token_set", strings.TrimSpace(newCfg.Notifier.Token) != ""))
		}
	}
	if !reflect.DeepEqual(oldCfg.Autopilot, newCfg.Autopilot) {
		changed = append(changed, "autopilot")
		if newCfg.Autopilot != nil {
			fields = append(fields, logx.String("autopilot.schedule", newCfg.Autopilot.Schedule))
		}
	}
	return changed, fields
}
