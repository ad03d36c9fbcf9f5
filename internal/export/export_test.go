package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ytc/internal/broadcast"
)

func occ(id, tpl string, start time.Time) broadcast.Occurrence {
	return broadcast.Occurrence{
		TemplateID: tpl, RemoteID: id, Title: "T " + id, Start: start,
		Privacy: broadcast.PrivacyPublic, AutoStart: true,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestExportMonthGroupsAndSorts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	late := occ("b2", "sun", time.Date(2024, 3, 24, 15, 0, 0, 0, time.UTC))
	early := occ("b1", "sun", time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC))

	paths, err := Export([]broadcast.Occurrence{late, early}, dir, []Bucket{BucketMonth}, "", time.UTC)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "202403_broadcasts_info.csv" {
		t.Fatalf("paths = %v", paths)
	}
	rows := readCSV(t, paths[0])
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][0] != "b1" || rows[2][0] != "b2" {
		t.Fatalf("rows not sorted by start: %v", rows)
	}
	want := []string{"b1", "T b1", "2024-03-03T15:00:00Z", "true", "false", "public", "false",
		"https://youtu.be/b1", "<a href='https://youtu.be/b1'>T b1</a>"}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Fatalf("column %s = %q, want %q", Header[i], rows[1][i], want[i])
		}
	}
}

func TestExportStartsWithByteOrderMark(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	paths, err := Export([]broadcast.Occurrence{occ("b1", "sun", time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC))},
		dir, []Bucket{BucketNone}, "", time.UTC)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	raw, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte("\xef\xbb\xbfYouTubeId,Title,")) {
		t.Fatalf("file does not start with BOM and header: %q", raw[:min(len(raw), 20)])
	}
	if bytes.Count(raw, []byte("\xef\xbb\xbf")) != 1 {
		t.Fatal("BOM written more than once")
	}
}

func TestExportBucketKeysAndPrefix(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	records := []broadcast.Occurrence{
		occ("a", "sun", time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)),
		occ("b", "sun", time.Date(2024, 3, 3, 21, 0, 0, 0, time.UTC)),
		occ("c", "wed", time.Date(2024, 4, 3, 21, 0, 0, 0, time.UTC)),
	}
	paths, err := Export(records, dir, []Bucket{BucketNone, BucketDay, BucketHour, BucketTemplate}, "east", time.UTC)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	want := []string{
		"ALL_east_broadcasts_info.csv",
		"20240303_east_broadcasts_info.csv",
		"20240403_east_broadcasts_info.csv",
		"2024030309_east_broadcasts_info.csv",
		"2024030321_east_broadcasts_info.csv",
		"2024040321_east_broadcasts_info.csv",
		"broadcastId-sun_east_broadcasts_info.csv",
		"broadcastId-wed_east_broadcasts_info.csv",
	}
	if len(names) != len(want) {
		t.Fatalf("files = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("file %d = %s, want %s", i, names[i], want[i])
		}
	}
	if rows := readCSV(t, filepath.Join(dir, "ALL_east_broadcasts_info.csv")); len(rows) != 4 {
		t.Fatalf("ALL rows = %d", len(rows))
	}
}

func TestExportKeysUseLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC-5", -5*3600)
	o := occ("a", "sun", time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC))
	if got := BucketMonth.Key(o, loc); got != "202403" {
		t.Fatalf("month key = %s, want local month 202403", got)
	}
}

func TestExportNothingToDo(t *testing.T) {
	t.Parallel()
	paths, err := Export(nil, t.TempDir(), []Bucket{BucketNone}, "", time.UTC)
	if err != nil || paths != nil {
		t.Fatalf("Export(nil) = %v, %v", paths, err)
	}
}

func TestParseBuckets(t *testing.T) {
	t.Parallel()
	got, err := ParseBuckets("monthly, 3 ,month,BROADCAST")
	if err != nil {
		t.Fatalf("ParseBuckets: %v", err)
	}
	want := []Bucket{BucketMonth, BucketDay, BucketTemplate}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bucket %d = %v, want %v", i, got[i], want[i])
		}
	}
	if _, err := ParseBuckets("weekly"); !errors.Is(err, broadcast.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
