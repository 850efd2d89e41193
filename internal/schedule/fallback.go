package schedule

import (
	"slices"
	"time"

	"github.com/andygrunwald/bin-collection/internal/models"
)

// DefaultFallbackWeeks is how far ahead GenerateFallback predicts when no
// horizon is given.
const DefaultFallbackWeeks = 12

// The household is on a fortnightly rotation with collections every Friday.
// Friday 28 November 2025 was a garden, recycling and food week; the following
// Friday was refuse and food.
var (
	anchorYear  = 2025
	anchorMonth = time.November
	anchorDay   = 28
)

var rotationA = []models.ProcessedService{
	{ServiceName: "Garden Waste", ServiceType: models.ServiceTypeGarden, TaskType: "Emptying", ScheduleDescription: "Fortnightly"},
	{ServiceName: "Recycling", ServiceType: models.ServiceTypeRecycling, TaskType: "Emptying", ScheduleDescription: "Fortnightly"},
	{ServiceName: "Food Waste", ServiceType: models.ServiceTypeFood, TaskType: "Emptying", ScheduleDescription: "Weekly"},
}

var rotationB = []models.ProcessedService{
	{ServiceName: "Refuse", ServiceType: models.ServiceTypeRefuse, TaskType: "Emptying", ScheduleDescription: "Fortnightly"},
	{ServiceName: "Food Waste", ServiceType: models.ServiceTypeFood, TaskType: "Emptying", ScheduleDescription: "Weekly"},
}

// GenerateFallback predicts the next weeksAhead Fridays of the rotation.
// It is used when the upstream service cannot be reached. The result is a
// best-effort estimate and depends only on now, loc and weeksAhead.
func GenerateFallback(now time.Time, loc *time.Location, weeksAhead int) models.ProcessedApiResponse {
	if loc == nil {
		loc = time.Local
	}
	if weeksAhead <= 0 {
		weeksAhead = DefaultFallbackWeeks
	}

	today := now.In(loc)
	anchor := time.Date(anchorYear, anchorMonth, anchorDay, 0, 0, 0, 0, loc)
	weeksSinceAnchor := floorDiv(calendarDaysBetween(anchor, today), 7)
	isRotationA := floorMod(weeksSinceAnchor, 2) == 0

	collections := make([]models.ProcessedCollectionDate, 0, weeksAhead)
	for week := 0; week < weeksAhead; week++ {
		day := anchor.AddDate(0, 0, (weeksSinceAnchor+week)*7)
		if daysUntil := calendarDaysBetween(today, day); daysUntil >= 0 {
			collections = append(collections, fallbackCollection(day, daysUntil, isRotationA))
		}
		isRotationA = !isRotationA
	}

	return models.ProcessedApiResponse{Collections: collections}
}

func fallbackCollection(day time.Time, daysUntil int, isRotationA bool) models.ProcessedCollectionDate {
	template := rotationB
	if isRotationA {
		template = rotationA
	}

	next := day.Format(time.RFC3339)
	services := slices.Clone(template)
	for i := range services {
		lookback := 14
		if services[i].ServiceType == models.ServiceTypeFood {
			lookback = 7
		}
		services[i].Next = next
		services[i].Last = day.AddDate(0, 0, -lookback).Format(time.RFC3339)
	}
	sortServices(services)

	return models.ProcessedCollectionDate{
		Date:      next,
		DaysUntil: daysUntil,
		Services:  services,
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return ((a % b) + b) % b
}
