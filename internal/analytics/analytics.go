// Package analytics answers aggregate queries over the ingested event tables.
// All aggregation is delegated to the SQL engine; this package only scopes,
// scans and normalizes the results.
package analytics

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// Count is a defensive counter type: depending on the backend a COUNT(*)
// column can arrive as an integer, a float or text. Normalizing here keeps
// the coercion at the store boundary instead of at every call site.
type Count int64

// Scan implements sql.Scanner.
func (c *Count) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = 0
	case int64:
		*c = Count(v)
	case int:
		*c = Count(v)
	case float64:
		*c = Count(v)
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Count", value)
	}
	return nil
}

func (c *Count) scanString(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("cannot scan %q into Count: %w", s, err)
	}
	*c = Count(n)
	return nil
}

// Value implements driver.Valuer.
func (c Count) Value() (driver.Value, error) {
	return int64(c), nil
}

// CustomEventCount is one custom-event name with its occurrence count.
type CustomEventCount struct {
	EventName string `gorm:"column:event_name" json:"event_name"`
	Count     Count  `gorm:"column:count" json:"count"`
}

// PageCount is one path with its view count. ProjectID is populated only in
// the cross-project variant.
type PageCount struct {
	ProjectID string `gorm:"column:project_id" json:"project_id,omitempty"`
	Path      string `gorm:"column:path" json:"path"`
	Views     Count  `gorm:"column:views" json:"views"`
}

// CountryCount is one country with its distinct-visitor count.
type CountryCount struct {
	Country  string `gorm:"column:country" json:"country"`
	Visitors Count  `gorm:"column:visitors" json:"visitors"`
}

// CityCount is one city/region/country triple with its distinct-visitor count.
type CityCount struct {
	City     string `gorm:"column:city" json:"city"`
	Region   string `gorm:"column:region" json:"region"`
	Country  string `gorm:"column:country" json:"country"`
	Visitors Count  `gorm:"column:visitors" json:"visitors"`
}

// Stats is the aggregate for one project, or across all projects.
type Stats struct {
	UniqueVisitors Count              `json:"uniqueVisitors"`
	TotalPageViews Count              `json:"totalPageViews"`
	CustomEvents   []CustomEventCount `json:"customEvents"`
	TopPages       []PageCount        `json:"topPages"`
	TopCountries   []CountryCount     `json:"topCountries"`
	TopCities      []CityCount        `json:"topCities"`
}

// EmptyStats returns a structurally valid all-zero aggregate.
func EmptyStats() *Stats {
	return &Stats{
		CustomEvents: []CustomEventCount{},
		TopPages:     []PageCount{},
		TopCountries: []CountryCount{},
		TopCities:    []CityCount{},
	}
}

// ProjectSummary is a project's aggregate tagged with its project id.
type ProjectSummary struct {
	ProjectID string `json:"projectId"`
	*Stats
}

// TimeSeriesPoint is one day's counts in a trailing time series.
type TimeSeriesPoint struct {
	Date      string `json:"date"`
	Visitors  Count  `json:"visitors"`
	PageViews Count  `json:"pageViews"`
	Events    Count  `json:"events"`
}

// QueryWindow is a closed time window, inclusive at both ends.
type QueryWindow struct {
	From time.Time
	To   time.Time
}

// DayWindow returns the window spanning t's calendar day in local time.
func DayWindow(t time.Time) QueryWindow {
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	to := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
	return QueryWindow{From: from, To: to}
}

// TodayWindow returns the window for the current calendar day.
func TodayWindow() QueryWindow {
	return DayWindow(time.Now())
}
