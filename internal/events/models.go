package events

import "time"

// EventType discriminates the two beacon variants.
type EventType string

const (
	EventTypePageView    EventType = "page_view"
	EventTypeCustomEvent EventType = "custom_event"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	return t == EventTypePageView || t == EventTypeCustomEvent
}

// DefaultVisitorID is used when a beacon carries no visitor identifier.
const DefaultVisitorID = "anonymous"

// Beacon is a single analytics event as submitted by a client, enriched with
// the resolved client address and location before it is persisted.
type Beacon struct {
	ProjectID  string                 `json:"projectId"`
	EventType  EventType              `json:"eventType"`
	VisitorID  string                 `json:"visitorId,omitempty"`
	Path       string                 `json:"path,omitempty"`
	EventName  string                 `json:"eventName,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Referrer   string                 `json:"referrer,omitempty"`
	UserAgent  string                 `json:"userAgent,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty"`
	City       string                 `json:"city,omitempty"`
	Region     string                 `json:"region,omitempty"`
	Country    string                 `json:"country,omitempty"`
}

// Event is the generic append-only log row written for every accepted beacon
// regardless of type. It duplicates the typed tables by design; there is no
// foreign-key relationship between them.
type Event struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ProjectID string    `gorm:"index;not null"`
	EventType EventType `gorm:"index;not null"`
	EventData string    `gorm:"type:text"`
	VisitorID string
	Path      *string
	CreatedAt time.Time `gorm:"index;autoCreateTime"`
}

// PageView is one row per page-view beacon.
type PageView struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ProjectID string `gorm:"index;not null"`
	Path      string `gorm:"index;not null"`
	VisitorID string `gorm:"not null"`
	Referrer  *string
	UserAgent *string
	IPAddress *string `gorm:"index"`
	City      *string
	Region    *string
	Country   *string
	CreatedAt time.Time `gorm:"index;autoCreateTime"`
}

// CustomEvent is one row per custom-event beacon.
type CustomEvent struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	ProjectID  string  `gorm:"index;not null"`
	EventName  string  `gorm:"index;not null"`
	Properties *string `gorm:"type:text"`
	VisitorID  string
	CreatedAt  time.Time `gorm:"index;autoCreateTime"`
}
