// Package aggregate folds a complete record set into fixed rolling
// calendar-day windows for dashboard charting.
package aggregate

import (
	"strings"
	"time"

	"github.com/fiscaliza/backoffice-client/pkg/api"
)

// Canonical category names. A record's raw type field is normalized before
// matching; anything outside the vocabulary still counts toward the day's
// total, just not toward a category series.
const (
	CategoryConforme    = "conforme"
	CategoryNaoConforme = "nao_conforme"
)

// DefaultWindowDays is the trailing window the dashboard charts.
const DefaultWindowDays = 7

// bucketKeyLayout is the local calendar date used as the bucketing key.
const bucketKeyLayout = "2006-01-02"

// labelLayout is the short display form (day/month).
const labelLayout = "02/01"

// createdAtLayouts are the timestamp formats the backend is known to emit.
var createdAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// TimeBucket is one calendar day of the trailing window.
type TimeBucket struct {
	// Key is the local date string (YYYY-MM-DD).
	Key string `json:"key"`

	// Label is the short display form (DD/MM).
	Label string `json:"label"`

	// Counts maps canonical category to the number of records that day.
	Counts map[string]int `json:"counts"`

	// Total counts every record that day, vocabulary match or not.
	Total int `json:"total"`
}

// Buckets folds records into windowDays buckets, one per local calendar day,
// walking backward from now inclusive. Records with unparseable dates or
// outside the window are silently skipped. Bucket order is fixed oldest to
// newest, independent of input ordering.
func Buckets(records []api.Record, windowDays int, now time.Time) []TimeBucket {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	buckets := make([]TimeBucket, windowDays)
	index := make(map[string]*TimeBucket, windowDays)
	for i := 0; i < windowDays; i++ {
		day := today.AddDate(0, 0, i-windowDays+1)
		buckets[i] = TimeBucket{
			Key:    day.Format(bucketKeyLayout),
			Label:  day.Format(labelLayout),
			Counts: map[string]int{},
		}
		index[buckets[i].Key] = &buckets[i]
	}

	for _, record := range records {
		ts, ok := parseCreatedAt(record.CreatedAt, loc)
		if !ok {
			continue
		}

		bucket, ok := index[ts.Format(bucketKeyLayout)]
		if !ok {
			// Outside the window.
			continue
		}

		bucket.Total++
		if category, ok := matchCategory(record.Type); ok {
			bucket.Counts[category]++
		}
	}

	return buckets
}

// parseCreatedAt parses a record timestamp into the dashboard's local time.
func parseCreatedAt(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.In(loc), true
	}
	for _, layout := range createdAtLayouts[1:] {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// NormalizeCategory lowercases a raw type value and strips whitespace,
// underscores and hyphens, so "Não Conforme", "nao_conforme" and
// "NaoConforme" all collapse to one token.
func NormalizeCategory(raw string) string {
	normalized := strings.ToLower(raw)
	normalized = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '_', '-':
			return -1
		case 'ã', 'á', 'â':
			return 'a'
		case 'õ', 'ó', 'ô':
			return 'o'
		default:
			return r
		}
	}, normalized)
	return normalized
}

// matchCategory maps a raw type to a canonical category.
func matchCategory(raw string) (string, bool) {
	switch NormalizeCategory(raw) {
	case "conforme":
		return CategoryConforme, true
	case "naoconforme", "noconforme":
		return CategoryNaoConforme, true
	default:
		return "", false
	}
}
