package schedule

import (
	"time"

	"github.com/andygrunwald/bin-collection/internal/models"
)

// scenarioOffsets holds the day offsets of the three canned collections.
var scenarioOffsets = map[models.TestScenario][3]int{
	models.ScenarioTomorrow: {1, 8, 15},
	models.ScenarioToday:    {0, 7, 14},
	models.ScenarioGap:      {5, 12, 19},
}

// ValidScenario reports whether s is a known test scenario.
func ValidScenario(s models.TestScenario) bool {
	_, ok := scenarioOffsets[s]
	return ok
}

// Scenario returns canned collection data for UI testing. Unknown scenarios
// fall back to ScenarioTomorrow.
func Scenario(scenario models.TestScenario, now time.Time, loc *time.Location) models.ProcessedApiResponse {
	if loc == nil {
		loc = time.Local
	}
	offsets, ok := scenarioOffsets[scenario]
	if !ok {
		offsets = scenarioOffsets[models.ScenarioTomorrow]
	}

	today := now.In(loc)
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	at := func(offset int) string {
		return midnight.AddDate(0, 0, offset).Format(time.RFC3339)
	}

	first, second, third := at(offsets[0]), at(offsets[1]), at(offsets[2])
	collections := []models.ProcessedCollectionDate{
		{
			Date: first,
			Services: []models.ProcessedService{
				scenarioService("Food Waste", models.ServiceTypeFood, at(offsets[0]-7), first, "Weekly Collection"),
				scenarioService("Recycling", models.ServiceTypeRecycling, at(offsets[0]-14), first, "Fortnightly Collection"),
			},
		},
		{
			Date: second,
			Services: []models.ProcessedService{
				scenarioService("Food Waste", models.ServiceTypeFood, first, second, "Weekly Collection"),
				scenarioService("Refuse", models.ServiceTypeRefuse, at(offsets[1]-14), second, "Fortnightly Collection"),
			},
		},
		{
			Date: third,
			Services: []models.ProcessedService{
				scenarioService("Garden Waste", models.ServiceTypeGarden, at(offsets[2]-14), third, "Fortnightly Collection"),
				scenarioService("Food Waste", models.ServiceTypeFood, second, third, "Weekly Collection"),
			},
		},
	}

	for i := range collections {
		sortServices(collections[i].Services)
		collections[i].DaysUntil = offsets[i]
	}
	return models.ProcessedApiResponse{Collections: collections}
}

func scenarioService(name string, serviceType models.ServiceType, last, next, description string) models.ProcessedService {
	return models.ProcessedService{
		ServiceName:         name,
		ServiceType:         serviceType,
		TaskType:            "Collection",
		Last:                last,
		Next:                next,
		ScheduleDescription: description,
	}
}
