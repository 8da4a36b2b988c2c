package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestGroupIntoThreadsMergesSameDayMessages(t *testing.T) {
	emails := []Email{
		{
			ID: "m1", ThreadID: "t1", Subject: "Trip plans", From: "alice@example.com",
			Snippet: "first", Category: "Personal",
			Date: day(t, "2026-08-20T09:00:00Z"), IsRead: true, IsArchived: true,
		},
		{
			ID: "m2", ThreadID: "t1", Subject: "Re: Trip plans", From: "bob@example.com",
			Snippet: "second", Category: "Personal",
			Date: day(t, "2026-08-20T14:30:00Z"), IsRead: false, IsArchived: true,
		},
		{
			ID: "m3", ThreadID: "t1", Subject: "Re: Re: Trip plans", From: "carol@example.com",
			Snippet: "third", Category: "Personal",
			Date: day(t, "2026-08-20T11:00:00Z"), IsRead: true, IsArchived: true,
		},
	}

	threads := GroupIntoThreads(emails)
	require.Len(t, threads, 1)

	thread := threads[0]
	assert.Equal(t, "t1", thread.ThreadID)
	assert.Equal(t, 3, thread.MessageCount)
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, thread.MessageIDs)

	// The newest message drives the display fields
	assert.Equal(t, "Re: Trip plans", thread.Subject)
	assert.Equal(t, "bob@example.com", thread.From)
	assert.Equal(t, "second", thread.Snippet)
	assert.Equal(t, day(t, "2026-08-20T14:30:00Z"), thread.LatestDate)

	// Unread and unarchived if any member is
	assert.False(t, thread.IsRead)
	assert.True(t, thread.IsArchived)
}

func TestGroupIntoThreadsSplitsAcrossCalendarDays(t *testing.T) {
	emails := []Email{
		{ID: "m1", ThreadID: "t1", Date: day(t, "2026-08-20T23:50:00Z")},
		{ID: "m2", ThreadID: "t1", Date: day(t, "2026-08-21T00:10:00Z")},
	}

	threads := GroupIntoThreads(emails)
	require.Len(t, threads, 2)
	assert.NotEqual(t, threads[0].ContainerID, threads[1].ContainerID)
	assert.Equal(t, threads[0].ThreadID, threads[1].ThreadID)
}

func TestGroupIntoThreadsUsesUTCDayBoundary(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*3600)
	emails := []Email{
		// 01:30 local on the 21st is 22:30 UTC on the 20th
		{ID: "m1", ThreadID: "t1", Date: time.Date(2026, 8, 21, 1, 30, 0, 0, zone)},
		{ID: "m2", ThreadID: "t1", Date: day(t, "2026-08-20T21:00:00Z")},
	}

	threads := GroupIntoThreads(emails)
	assert.Len(t, threads, 1)
}

func TestGroupIntoThreadsSingletonWithoutThreadID(t *testing.T) {
	emails := []Email{
		{ID: "m1", Date: day(t, "2026-08-20T09:00:00Z")},
		{ID: "m2", Date: day(t, "2026-08-20T10:00:00Z")},
	}

	threads := GroupIntoThreads(emails)
	require.Len(t, threads, 2)
	// Each message forms its own thread keyed by its id
	assert.Equal(t, "m2", threads[0].ThreadID)
	assert.Equal(t, "m1", threads[1].ThreadID)
}

func TestGroupIntoThreadsSortsNewestFirst(t *testing.T) {
	emails := []Email{
		{ID: "m1", ThreadID: "t1", Date: day(t, "2026-08-18T09:00:00Z")},
		{ID: "m2", ThreadID: "t2", Date: day(t, "2026-08-20T09:00:00Z")},
		{ID: "m3", ThreadID: "t3", Date: day(t, "2026-08-19T09:00:00Z")},
	}

	threads := GroupIntoThreads(emails)
	require.Len(t, threads, 3)
	assert.Equal(t, "t2", threads[0].ThreadID)
	assert.Equal(t, "t3", threads[1].ThreadID)
	assert.Equal(t, "t1", threads[2].ThreadID)
}

func TestGroupIntoThreadsEmptyInput(t *testing.T) {
	assert.Empty(t, GroupIntoThreads(nil))
}

func TestThreadMessagesQueriesCalendarDay(t *testing.T) {
	store := newFakeEmailStore(
		&Email{ID: "m1", Owner: "alice", ThreadID: "t1", Date: day(t, "2026-08-20T09:00:00Z")},
		&Email{ID: "m2", Owner: "alice", ThreadID: "t1", Date: day(t, "2026-08-20T18:00:00Z")},
		&Email{ID: "m3", Owner: "alice", ThreadID: "t1", Date: day(t, "2026-08-21T09:00:00Z")},
		&Email{ID: "m4", Owner: "alice", ThreadID: "t2", Date: day(t, "2026-08-20T09:00:00Z")},
	)

	messages, err := ThreadMessages(context.Background(), store, "alice", "t1", day(t, "2026-08-20T12:00:00Z"))
	require.NoError(t, err)
	require.Len(t, messages, 2)
	ids := []string{messages[0].ID, messages[1].ID}
	assert.ElementsMatch(t, []string{"m1", "m2"}, ids)
}
