// Package schedule turns upstream waste service records into collection days
// and derives everything that depends on the current date.
package schedule

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/andygrunwald/bin-collection/internal/models"
)

// dateKeyLayout is the layout of the local calendar date used to group services.
const dateKeyLayout = "2006-01-02"

// timestampLayouts are tried in order when parsing upstream timestamps.
// Layouts without an offset are interpreted in the household's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// classificationRules is evaluated top to bottom and the first match wins,
// so "Garden Recycling" is recycling, not garden.
var classificationRules = []struct {
	keyword     string
	serviceType models.ServiceType
}{
	{keyword: "Refuse", serviceType: models.ServiceTypeRefuse},
	{keyword: "Recycling", serviceType: models.ServiceTypeRecycling},
	{keyword: "Food", serviceType: models.ServiceTypeFood},
	{keyword: "Garden", serviceType: models.ServiceTypeGarden},
}

// Classify derives the service type from an upstream service name.
// Matching is case sensitive. Names without a known keyword are ServiceTypeDefault.
func Classify(serviceName string) models.ServiceType {
	for _, rule := range classificationRules {
		if strings.Contains(serviceName, rule.keyword) {
			return rule.serviceType
		}
	}
	return models.ServiceTypeDefault
}

// DisplayName strips the "Domestic" and "Collection" noise words from an
// upstream service name, e.g. "Domestic Food Waste Collection" -> "Food Waste".
func DisplayName(serviceName string) string {
	name := strings.Replace(serviceName, "Domestic", "", 1)
	name = strings.Replace(name, "Collection", "", 1)
	return strings.Join(strings.Fields(name), " ")
}

// ParseTimestamp parses an upstream timestamp. Values without an offset are
// read in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", value)
}

// Normalize groups upstream service records by the local calendar day of their
// next collection.
//
// Records without a schedule header or a parseable next timestamp are skipped.
// Each day keeps the verbatim timestamp of its earliest service as its date.
// Services are ordered with food waste last and alphabetically otherwise, and
// days are ordered chronologically. DaysUntil is left at zero; Project fills it.
func Normalize(records []models.RawServiceRecord, loc *time.Location) models.ProcessedApiResponse {
	if loc == nil {
		loc = time.Local
	}

	type day struct {
		date     string
		at       time.Time
		services []models.ProcessedService
	}

	days := make(map[string]*day)
	var order []*day

	for _, record := range records {
		if len(record.ServiceHeaders) == 0 {
			continue
		}
		header := record.ServiceHeaders[0]
		if header.Next == "" {
			continue
		}

		next, err := ParseTimestamp(header.Next, loc)
		if err != nil {
			continue
		}

		key := next.In(loc).Format(dateKeyLayout)
		d, ok := days[key]
		if !ok {
			d = &day{date: header.Next, at: next}
			days[key] = d
			order = append(order, d)
		} else if next.Before(d.at) {
			d.date = header.Next
			d.at = next
		}

		d.services = append(d.services, models.ProcessedService{
			ServiceName:         DisplayName(record.ServiceName),
			ServiceType:         Classify(record.ServiceName),
			TaskType:            header.TaskType,
			Last:                header.Last,
			Next:                header.Next,
			ScheduleDescription: header.ScheduleDescription,
		})
	}

	slices.SortStableFunc(order, func(a, b *day) int {
		return a.at.Compare(b.at)
	})

	collections := make([]models.ProcessedCollectionDate, 0, len(order))
	for _, d := range order {
		sortServices(d.services)
		collections = append(collections, models.ProcessedCollectionDate{
			Date:     d.date,
			Services: d.services,
		})
	}

	return models.ProcessedApiResponse{Collections: collections}
}

// sortServices puts food waste after everything else and orders each part by
// display name. Remaining ties are broken on raw bytes and type so the order
// never depends on input order.
func sortServices(services []models.ProcessedService) {
	collator := collate.New(language.BritishEnglish)
	slices.SortStableFunc(services, func(a, b models.ProcessedService) int {
		aFood := a.ServiceType == models.ServiceTypeFood
		bFood := b.ServiceType == models.ServiceTypeFood
		if aFood != bFood {
			if aFood {
				return 1
			}
			return -1
		}
		if n := collator.CompareString(a.ServiceName, b.ServiceName); n != 0 {
			return n
		}
		if n := strings.Compare(a.ServiceName, b.ServiceName); n != 0 {
			return n
		}
		return strings.Compare(string(a.ServiceType), string(b.ServiceType))
	})
}
