package events

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// Ingest persists a beacon: page views and custom events each get a row in
// their typed table, and every beacon is additionally appended to the generic
// events table for unified querying. The two inserts are deliberately not
// wrapped in a transaction and there is no idempotency key; a retried beacon
// is double-counted.
func Ingest(db *gorm.DB, logger *slog.Logger, beacon *Beacon) error {
	visitorID := beacon.VisitorID
	if visitorID == "" {
		visitorID = DefaultVisitorID
	}

	switch {
	case beacon.EventType == EventTypePageView && beacon.Path != "":
		pageView := &PageView{
			ProjectID: beacon.ProjectID,
			Path:      beacon.Path,
			VisitorID: visitorID,
			Referrer:  nullable(beacon.Referrer),
			UserAgent: nullable(beacon.UserAgent),
			IPAddress: nullable(beacon.IPAddress),
			City:      nullable(beacon.City),
			Region:    nullable(beacon.Region),
			Country:   nullable(beacon.Country),
		}
		if err := db.Create(pageView).Error; err != nil {
			logger.Error("Failed to store page view", slog.Any("error", err))
			return fmt.Errorf("failed to store page view: %w", err)
		}
	case beacon.EventType == EventTypeCustomEvent && beacon.EventName != "":
		properties, err := marshalProperties(beacon.Properties)
		if err != nil {
			return err
		}
		customEvent := &CustomEvent{
			ProjectID:  beacon.ProjectID,
			EventName:  beacon.EventName,
			Properties: properties,
			VisitorID:  visitorID,
		}
		if err := db.Create(customEvent).Error; err != nil {
			logger.Error("Failed to store custom event", slog.Any("error", err))
			return fmt.Errorf("failed to store custom event: %w", err)
		}
	}

	// A beacon lacking both path and eventName still lands here, in the
	// generic log only.
	payload, err := json.Marshal(beacon)
	if err != nil {
		return fmt.Errorf("failed to serialize event payload: %w", err)
	}
	event := &Event{
		ProjectID: beacon.ProjectID,
		EventType: beacon.EventType,
		EventData: string(payload),
		VisitorID: visitorID,
		Path:      nullable(beacon.Path),
	}
	if err := db.Create(event).Error; err != nil {
		logger.Error("Failed to store event", slog.Any("error", err))
		return fmt.Errorf("failed to store event: %w", err)
	}

	return nil
}

func marshalProperties(properties map[string]interface{}) (*string, error) {
	if properties == nil {
		return nil, nil
	}
	raw, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event properties: %w", err)
	}
	s := string(raw)
	return &s, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
