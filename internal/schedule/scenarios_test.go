package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/bin-collection/internal/models"
)

func TestScenario(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 9, 3, 15, 0, 0, 0, bst)

	tests := map[string]struct {
		scenario models.TestScenario
		wantDays []int
	}{
		"tomorrow":         {scenario: models.ScenarioTomorrow, wantDays: []int{1, 8, 15}},
		"today":            {scenario: models.ScenarioToday, wantDays: []int{0, 7, 14}},
		"gap":              {scenario: models.ScenarioGap, wantDays: []int{5, 12, 19}},
		"unknown scenario": {scenario: "nonsense", wantDays: []int{1, 8, 15}},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := Scenario(tc.scenario, now, bst)
			require.Len(t, got.Collections, 3)

			for i, c := range got.Collections {
				assert.Equal(t, tc.wantDays[i], c.DaysUntil)

				days, err := DaysUntil(c.Date, now, bst)
				require.NoError(t, err)
				assert.Equal(t, c.DaysUntil, days, "canned daysUntil must match its date")

				last := c.Services[len(c.Services)-1]
				assert.Equal(t, models.ServiceTypeFood, last.ServiceType, "food waste is listed last")
			}
		})
	}
}

func TestValidScenario(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidScenario(models.ScenarioTomorrow))
	assert.True(t, ValidScenario(models.ScenarioToday))
	assert.True(t, ValidScenario(models.ScenarioGap))
	assert.False(t, ValidScenario("yesterday"))
}
