package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GetTimeSeries computes per-day counts for the most recent days calendar
// days, oldest first, ending on the current day. An empty projectID spans all
// projects. Each day issues three independent queries; the loop is
// deliberately unbatched.
func GetTimeSeries(db *gorm.DB, projectID string, days int) ([]TimeSeriesPoint, error) {
	if days < 1 {
		days = 1
	}

	points := make([]TimeSeriesPoint, 0, days)
	now := time.Now()

	for i := days - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		window := DayWindow(day)

		var visitors struct{ Count Count }
		err := scoped(db, "page_views", projectID, window).
			Select("COUNT(DISTINCT visitor_id) AS count").
			Scan(&visitors).Error
		if err != nil {
			return nil, fmt.Errorf("error fetching daily visitors: %w", err)
		}

		var pageViews struct{ Count Count }
		err = scoped(db, "page_views", projectID, window).
			Select("COUNT(*) AS count").
			Scan(&pageViews).Error
		if err != nil {
			return nil, fmt.Errorf("error fetching daily page views: %w", err)
		}

		var customEvents struct{ Count Count }
		err = scoped(db, "custom_events", projectID, window).
			Select("COUNT(*) AS count").
			Scan(&customEvents).Error
		if err != nil {
			return nil, fmt.Errorf("error fetching daily custom events: %w", err)
		}

		points = append(points, TimeSeriesPoint{
			Date:      day.Format("2006-01-02"),
			Visitors:  visitors.Count,
			PageViews: pageViews.Count,
			Events:    customEvents.Count,
		})
	}

	return points, nil
}
