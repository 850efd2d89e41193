package schedule

import (
	"slices"
	"strings"
	"time"

	"github.com/andygrunwald/bin-collection/internal/models"
)

// DaysUntil returns the number of local calendar days from now until date.
// Today is 0, tomorrow is 1 and past days are negative.
func DaysUntil(date string, now time.Time, loc *time.Location) (int, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := ParseTimestamp(date, loc)
	if err != nil {
		return 0, err
	}
	return calendarDaysBetween(now.In(loc), t.In(loc)), nil
}

// calendarDaysBetween counts whole calendar days between the wall-clock dates
// of from and to. Both values must already be in the same location.
// Comparing dates rather than instants keeps DST transitions from producing
// 23 or 25 hour days.
func calendarDaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// Project returns a copy of resp with DaysUntil recomputed against now and the
// collections ordered by instant. Dates and services are left untouched.
// It must run on every read, cached or not.
func Project(resp models.ProcessedApiResponse, now time.Time, loc *time.Location) models.ProcessedApiResponse {
	if loc == nil {
		loc = time.Local
	}

	type projected struct {
		collection models.ProcessedCollectionDate
		at         time.Time
		parsed     bool
	}

	items := make([]projected, 0, len(resp.Collections))
	for _, c := range resp.Collections {
		c.Services = slices.Clone(c.Services)
		item := projected{collection: c}
		if t, err := ParseTimestamp(c.Date, loc); err == nil {
			item.at = t
			item.parsed = true
			item.collection.DaysUntil = calendarDaysBetween(now.In(loc), t.In(loc))
		}
		items = append(items, item)
	}

	slices.SortStableFunc(items, func(a, b projected) int {
		switch {
		case a.parsed && b.parsed:
			return a.at.Compare(b.at)
		case a.parsed:
			return -1
		case b.parsed:
			return 1
		}
		return strings.Compare(a.collection.Date, b.collection.Date)
	})

	collections := make([]models.ProcessedCollectionDate, 0, len(items))
	for _, item := range items {
		collections = append(collections, item.collection)
	}
	return models.ProcessedApiResponse{Collections: collections}
}

// NextCollection returns the first collection that is today or later.
func NextCollection(resp models.ProcessedApiResponse) (models.ProcessedCollectionDate, bool) {
	for _, c := range resp.Collections {
		if c.DaysUntil >= 0 {
			return c, true
		}
	}
	return models.ProcessedCollectionDate{}, false
}
