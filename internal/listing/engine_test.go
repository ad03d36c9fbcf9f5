package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytc/internal/broadcast"
	"ytc/internal/youtube"
	"ytc/internal/youtube/youtubetest"
	"ytc/pkg/logx"
)

func at(day int) *time.Time {
	t := time.Date(2024, time.March, day, 10, 0, 0, 0, time.UTC)
	return &t
}

func TestListAllLimitAndOrder(t *testing.T) {
	fake := youtubetest.New()
	var items []broadcast.Remote
	for i := 1; i <= 15; i++ {
		r := broadcast.Remote{ID: fmt.Sprintf("id%02d", i), Title: fmt.Sprintf("t%02d", i), Privacy: "public"}
		if i%5 != 0 {
			r.ScheduledStart = at(i)
		}
		items = append(items, r)
	}
	fake.ByFilter[broadcast.FilterAll] = items

	e := New(youtube.StaticSession(fake), logx.Nop())
	got, err := e.List(context.Background(), []broadcast.Filter{broadcast.FilterAll}, 10)
	require.NoError(t, err)
	require.Len(t, got, 10)

	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1].ScheduledStart, got[i].ScheduledStart
		if prev == nil {
			require.Nil(t, cur, "scheduled broadcast sorted after unscheduled one at %d", i)
			continue
		}
		if cur != nil {
			assert.False(t, cur.After(*prev), "not descending at %d", i)
		}
	}
	assert.Equal(t, "id14", got[0].ID)
	assert.Equal(t, []string{"list(all)"}, fake.Ops())
}

// The fake's default path returns broadcasts by id and cuts them to max,
// so the newest ones sit past any cap applied before sorting.
func TestListLimitKeepsNewest(t *testing.T) {
	tests := []struct {
		name    string
		filters []broadcast.Filter
		life    string
	}{
		{name: "all", filters: nil, life: "ready"},
		{name: "upcoming", filters: []broadcast.Filter{broadcast.FilterUpcoming}, life: "created"},
		{name: "upcoming and completed", filters: []broadcast.Filter{broadcast.FilterCompleted, broadcast.FilterUpcoming}, life: "ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := youtubetest.New()
			for i := 1; i <= 15; i++ {
				id := fmt.Sprintf("b%03d", i)
				fake.Broadcasts[id] = broadcast.Remote{ID: id, Title: "Service " + id, ScheduledStart: at(i), LifeCycle: tt.life}
			}
			e := New(youtube.StaticSession(fake), logx.Nop())

			got, err := e.List(context.Background(), tt.filters, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{
				"b015", "b014", "b013", "b012", "b011",
				"b010", "b009", "b008", "b007", "b006",
			}, ids(got))
		})
	}
}

func TestListAllUnscheduledLast(t *testing.T) {
	fake := youtubetest.New()
	fake.ByFilter[broadcast.FilterAll] = []broadcast.Remote{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B", ScheduledStart: at(2)},
		{ID: "c", Title: "C", ScheduledStart: at(9)},
	}
	e := New(youtube.StaticSession(fake), logx.Nop())
	got, err := e.List(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(got))
}

func TestListDeduplicatesAcrossFilters(t *testing.T) {
	fake := youtubetest.New()
	fake.ByFilter[broadcast.FilterUpcoming] = []broadcast.Remote{
		{ID: "x", Title: "Evening", ScheduledStart: at(5)},
		{ID: "y", Title: "Morning", ScheduledStart: at(4)},
	}
	fake.ByFilter[broadcast.FilterActive] = []broadcast.Remote{
		{ID: "y", Title: "Morning (live)", ScheduledStart: at(4)},
		{ID: "z"},
	}
	e := New(youtube.StaticSession(fake), logx.Nop())
	got, err := e.List(context.Background(), []broadcast.Filter{broadcast.FilterActive, broadcast.FilterUpcoming, broadcast.FilterActive}, 50)
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y", "z"}, ids(got))
	assert.Equal(t, "Morning", got[1].Title, "first occurrence wins")
	assert.Equal(t, "Unknown", got[2].Title)
	assert.Equal(t, "unknown", got[2].Privacy)
	assert.ElementsMatch(t, []string{"list(upcoming)", "list(active)"}, fake.Ops())
}

func TestListRemoteFailureAbortsListing(t *testing.T) {
	fake := youtubetest.New()
	fake.FailOn["list"] = func(status string) error {
		if status == "completed" {
			return errors.New("quota")
		}
		return nil
	}
	e := New(youtube.StaticSession(fake), logx.Nop())
	got, err := e.List(context.Background(), []broadcast.Filter{broadcast.FilterUpcoming, broadcast.FilterCompleted}, 5)
	assert.ErrorIs(t, err, broadcast.ErrRemote)
	assert.Nil(t, got)
}

func TestMergeTitleTieBreak(t *testing.T) {
	got := Merge([]broadcast.Remote{
		{ID: "1", Title: "Alpha", ScheduledStart: at(3)},
		{ID: "2", Title: "Beta", ScheduledStart: at(3)},
		{ID: "3", Title: "Gamma"},
		{ID: "4", Title: "Delta"},
	})
	assert.Equal(t, []string{"2", "1", "3", "4"}, ids(got))
}

func ids(in []broadcast.Listed) []string {
	out := make([]string, len(in))
	for i, l := range in {
		out[i] = l.ID
	}
	return out
}
