// Package export writes provisioned occurrences to CSV files grouped by a
// time bucket or by template.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ytc/internal/broadcast"
)

// Bucket selects how records are grouped into files.
type Bucket int

const (
	BucketNone Bucket = iota + 1
	BucketMonth
	BucketDay
	BucketHour
	BucketTemplate
)

func (b Bucket) String() string {
	switch b {
	case BucketNone:
		return "single"
	case BucketMonth:
		return "monthly"
	case BucketDay:
		return "daily"
	case BucketHour:
		return "hourly"
	case BucketTemplate:
		return "broadcast"
	default:
		return "bucket(" + strconv.Itoa(int(b)) + ")"
	}
}

// Key returns the group key of o. Time buckets use o's start in loc.
func (b Bucket) Key(o broadcast.Occurrence, loc *time.Location) string {
	start := o.Start.In(loc)
	switch b {
	case BucketMonth:
		return start.Format("200601")
	case BucketDay:
		return start.Format("20060102")
	case BucketHour:
		return start.Format("2006010215")
	case BucketTemplate:
		return "broadcastId-" + o.TemplateID
	default:
		return "ALL"
	}
}

// ParseBucket accepts a name or the numeric codes 1-5.
func ParseBucket(s string) (Bucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "single", "all", "none":
		return BucketNone, nil
	case "2", "monthly", "month":
		return BucketMonth, nil
	case "3", "daily", "day":
		return BucketDay, nil
	case "4", "hourly", "hour":
		return BucketHour, nil
	case "5", "broadcast", "template":
		return BucketTemplate, nil
	}
	return 0, broadcast.Validationf("invalid export bucket %q", s)
}

// ParseBuckets parses a comma separated list, dropping duplicates.
func ParseBuckets(raw string) ([]Bucket, error) {
	var out []Bucket
	seen := map[Bucket]bool{}
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		b, err := ParseBucket(part)
		if err != nil {
			return nil, err
		}
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out, nil
}

const bom = "\ufeff"

// Header is the fixed column order of exported files.
var Header = []string{"YouTubeId", "Title", "Start", "AutoStart", "AutoStop", "Privacy", "ChatEnabled", "Url", "Link"}

// FileName is the export file name for a group key.
func FileName(key, prefix string) string {
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		return key + "_" + prefix + "_broadcasts_info.csv"
	}
	return key + "_broadcasts_info.csv"
}

// Export writes one file per group for every requested bucket and returns
// the written paths. No buckets or no records means nothing is written.
func Export(records []broadcast.Occurrence, dir string, buckets []Bucket, prefix string, loc *time.Location) ([]string, error) {
	if len(records) == 0 || len(buckets) == 0 {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	var paths []string
	for _, b := range buckets {
		groups := Group(records, func(o broadcast.Occurrence) string { return b.Key(o, loc) })
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			path := filepath.Join(dir, FileName(k, prefix))
			if err := writeFile(path, groups[k], loc); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// Group partitions records by key and sorts each group by start.
func Group(records []broadcast.Occurrence, key func(broadcast.Occurrence) string) map[string][]broadcast.Occurrence {
	groups := map[string][]broadcast.Occurrence{}
	for _, r := range records {
		k := key(r)
		groups[k] = append(groups[k], r)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].Start.Before(g[j].Start) })
	}
	return groups
}

func writeFile(path string, rows []broadcast.Occurrence, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	// Spreadsheet apps need the byte order mark to detect UTF-8 titles.
	if _, err := f.WriteString(bom); err != nil {
		_ = f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	_ = w.Write(Header)
	for _, o := range rows {
		_ = w.Write([]string{
			o.RemoteID,
			o.Title,
			o.Start.In(loc).Format(time.RFC3339),
			strconv.FormatBool(o.AutoStart),
			strconv.FormatBool(o.AutoStop),
			string(o.Privacy),
			strconv.FormatBool(o.ChatEnabled),
			o.URL(),
			o.Link(),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}
