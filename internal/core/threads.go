package core

import (
	"context"
	"sort"
	"time"
)

// Thread grouping is a stateless read-path transform: flat email rows in,
// conversation containers out. Nothing here is persisted.

// threadDayKey builds the composite grouping key of a message: its thread
// id plus the calendar day of its date. A message without a thread id
// forms a singleton thread keyed by its own id.
func threadDayKey(email *Email) (threadID, key string) {
	threadID = email.ThreadID
	if threadID == "" {
		threadID = email.ID
	}
	return threadID, threadID + "|" + email.Date.UTC().Format("2006-01-02")
}

// GroupIntoThreads folds an unsorted email list into thread containers
// ordered newest-first. The newest message of a container drives its
// display fields; a container is unread or unarchived if any member is.
func GroupIntoThreads(emails []Email) []ThreadContainer {
	containers := map[string]*ThreadContainer{}
	newest := map[string]time.Time{}
	var order []string

	for i := range emails {
		email := &emails[i]
		threadID, key := threadDayKey(email)

		c := containers[key]
		if c == nil {
			c = &ThreadContainer{
				ContainerID: key,
				ThreadID:    threadID,
				IsRead:      true,
				IsArchived:  true,
			}
			containers[key] = c
			order = append(order, key)
		}

		c.MessageIDs = append(c.MessageIDs, email.ID)
		c.MessageCount++
		if !email.IsRead {
			c.IsRead = false
		}
		if !email.IsArchived {
			c.IsArchived = false
		}
		if c.MessageCount == 1 || email.Date.After(newest[key]) {
			newest[key] = email.Date
			c.LatestDate = email.Date
			c.Subject = email.Subject
			c.From = email.From
			c.Snippet = email.Snippet
			c.Category = email.Category
		}
	}

	result := make([]ThreadContainer, 0, len(order))
	for _, key := range order {
		result = append(result, *containers[key])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LatestDate.After(result[j].LatestDate)
	})
	return result
}

// ThreadMessages fetches the chronologically ordered messages of one
// container by re-querying storage for the thread's calendar day, instead
// of retaining the grouped list from list time.
func ThreadMessages(ctx context.Context, store EmailStore, owner, threadID string, day time.Time) ([]Email, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	return store.ListThreadMessages(ctx, owner, threadID, dayStart, dayEnd)
}
