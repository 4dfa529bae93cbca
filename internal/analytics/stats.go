package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

const topListLimit = 10

// GetProjectStats computes the aggregate for a single project over the window.
func GetProjectStats(db *gorm.DB, projectID string, window QueryWindow) (*Stats, error) {
	return getStats(db, projectID, window)
}

// GetAllStats computes the combined aggregate across all projects. Its top
// pages list is keyed by project and ordered by project id first, with no
// row limit.
func GetAllStats(db *gorm.DB, window QueryWindow) (*Stats, error) {
	return getStats(db, "", window)
}

func getStats(db *gorm.DB, projectID string, window QueryWindow) (*Stats, error) {
	stats := EmptyStats()

	var visitors struct{ Count Count }
	err := scoped(db, "page_views", projectID, window).
		Select("COUNT(DISTINCT visitor_id) AS count").
		Scan(&visitors).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching unique visitors: %w", err)
	}
	stats.UniqueVisitors = visitors.Count

	var pageViews struct{ Count Count }
	err = scoped(db, "page_views", projectID, window).
		Select("COUNT(*) AS count").
		Scan(&pageViews).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching page views: %w", err)
	}
	stats.TotalPageViews = pageViews.Count

	err = scoped(db, "custom_events", projectID, window).
		Select("event_name, COUNT(*) AS count").
		Group("event_name").
		Scan(&stats.CustomEvents).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching custom event counts: %w", err)
	}

	topPages := scoped(db, "page_views", projectID, window)
	if projectID == "" {
		topPages = topPages.
			Select("project_id, path, COUNT(*) AS views").
			Group("project_id").Group("path").
			Order("project_id").Order("views DESC")
	} else {
		topPages = topPages.
			Select("path, COUNT(*) AS views").
			Group("path").
			Order("views DESC").
			Limit(topListLimit)
	}
	if err := topPages.Scan(&stats.TopPages).Error; err != nil {
		return nil, fmt.Errorf("error fetching top pages: %w", err)
	}

	err = scoped(db, "page_views", projectID, window).
		Select("country, COUNT(DISTINCT visitor_id) AS visitors").
		Where("country IS NOT NULL AND country != ?", "Unknown").
		Group("country").
		Order("visitors DESC").
		Limit(topListLimit).
		Scan(&stats.TopCountries).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top countries: %w", err)
	}

	err = scoped(db, "page_views", projectID, window).
		Select("city, region, country, COUNT(DISTINCT visitor_id) AS visitors").
		Where("city IS NOT NULL AND city != ?", "Unknown").
		Group("city").Group("region").Group("country").
		Order("visitors DESC").
		Limit(topListLimit).
		Scan(&stats.TopCities).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top cities: %w", err)
	}

	return stats, nil
}

// scoped narrows a table to the query window and, when projectID is not
// empty, to a single project.
func scoped(db *gorm.DB, table, projectID string, window QueryWindow) *gorm.DB {
	q := db.Table(table).
		Where("created_at >= ? AND created_at <= ?", window.From, window.To)
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	return q
}
