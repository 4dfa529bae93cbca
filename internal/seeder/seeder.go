// Package seeder generates development data: a spread of page views and
// custom events across a few projects over the trailing days.
package seeder

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"gorm.io/gorm"

	"beaconly/internal/events"
)

var (
	seedProjects  = []string{"docs-site", "marketing-site", "web-app"}
	seedPaths     = []string{"/", "/pricing", "/blog", "/blog/launch", "/docs", "/docs/install", "/about", "/contact"}
	seedEvents    = []string{"signup", "download", "newsletter_subscribe", "checkout_completed"}
	seedCountries = []struct {
		city, region, country string
	}{
		{"Berlin", "Berlin", "Germany"},
		{"Madrid", "Community of Madrid", "Spain"},
		{"Austin", "Texas", "United States"},
		{"Tokyo", "Tokyo", "Japan"},
		{"London", "England", "United Kingdom"},
	}
)

// Seeder inserts synthetic analytics data.
type Seeder struct {
	db         *gorm.DB
	logger     *slog.Logger
	EventCount int
	Days       int
}

// NewSeeder creates a seeder writing through db.
func NewSeeder(db *gorm.DB, logger *slog.Logger, eventCount, days int) *Seeder {
	if days < 1 {
		days = 7
	}
	return &Seeder{db: db, logger: logger, EventCount: eventCount, Days: days}
}

// Seed inserts EventCount beacons spread over the trailing Days days.
// Roughly one in five is a custom event, the rest page views.
func (s *Seeder) Seed() error {
	start := time.Now()
	s.logger.Info("Seeding analytics data...",
		slog.Int("eventCount", s.EventCount),
		slog.Int("days", s.Days))

	for i := 0; i < s.EventCount; i++ {
		createdAt := randomTimestamp(s.Days)
		projectID := seedProjects[rand.IntN(len(seedProjects))]
		visitorID := fmt.Sprintf("visitor-%d", rand.IntN(s.EventCount/4+1))

		if rand.IntN(5) == 0 {
			customEvent := &events.CustomEvent{
				ProjectID: projectID,
				EventName: seedEvents[rand.IntN(len(seedEvents))],
				VisitorID: visitorID,
				CreatedAt: createdAt,
			}
			if err := s.db.Create(customEvent).Error; err != nil {
				return fmt.Errorf("failed to seed custom event: %w", err)
			}
			continue
		}

		place := seedCountries[rand.IntN(len(seedCountries))]
		pageView := &events.PageView{
			ProjectID: projectID,
			Path:      seedPaths[rand.IntN(len(seedPaths))],
			VisitorID: visitorID,
			City:      &place.city,
			Region:    &place.region,
			Country:   &place.country,
			CreatedAt: createdAt,
		}
		if err := s.db.Create(pageView).Error; err != nil {
			return fmt.Errorf("failed to seed page view: %w", err)
		}
	}

	s.logger.Info("Seeding completed", slog.Duration("elapsed", time.Since(start)))
	return nil
}

func randomTimestamp(days int) time.Time {
	offset := time.Duration(rand.Int64N(int64(days) * int64(24*time.Hour)))
	return time.Now().Add(-offset)
}
