package http

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"beaconly/internal/database"
	"beaconly/internal/events"
	"beaconly/internal/pkg/geoip"
	"beaconly/internal/pkg/useragent"
)

const msgEventIngested = "Event ingested successfully"

// Validation error messages returned to the caller.
const (
	errMissingFields    = "Missing required fields: projectId, eventType"
	errInvalidEventType = "Invalid eventType. Must be page_view or custom_event"
	errMissingPath      = "page_view events require a path"
	errMissingEventName = "custom_event events require an eventName"
	errInvalidBody      = "Invalid request body"
	errEventsArray      = "Batch ingestion requires an events array"
)

// beaconRequest is the inbound beacon shape. The client address and location
// are resolved server-side and never taken from the body.
type beaconRequest struct {
	ProjectID  string                 `json:"projectId"`
	EventType  string                 `json:"eventType"`
	VisitorID  string                 `json:"visitorId"`
	Path       string                 `json:"path"`
	EventName  string                 `json:"eventName"`
	Properties map[string]interface{} `json:"properties"`
	Referrer   string                 `json:"referrer"`
	UserAgent  string                 `json:"userAgent"`
}

// IngestHandler accepts analytics beacons and forwards them to the store.
type IngestHandler struct {
	manager  *database.Manager
	logger   *slog.Logger
	resolver *geoip.Resolver
}

// NewIngestHandler creates an ingestion handler.
func NewIngestHandler(manager *database.Manager, logger *slog.Logger, resolver *geoip.Resolver) *IngestHandler {
	return &IngestHandler{manager: manager, logger: logger, resolver: resolver}
}

// Create handles POST /ingest: a single beacon.
func (h *IngestHandler) Create(c *fiber.Ctx) error {
	var params beaconRequest
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidBody,
		})
	}

	if params.UserAgent == "" {
		params.UserAgent = c.Get("User-Agent")
	}

	// Bot traffic is dropped silently: the caller cannot distinguish a
	// dropped bot beacon from an ingested one.
	if name, ok := useragent.MatchBot(params.UserAgent); ok {
		h.logger.Debug("Dropping bot event",
			slog.String("bot", name),
			slog.String("userAgent", params.UserAgent))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": true,
			"message": msgEventIngested,
		})
	}

	if msg := validateBeacon(&params); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	ip := getClientIP(c)
	location := h.resolver.Resolve(c.UserContext(), ip)

	beacon := beaconFromRequest(&params, ip, location)
	if err := events.Ingest(h.manager.GetConnection(), h.logger, beacon); err != nil {
		h.logger.Error("Ingestion error", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal server error",
			"message": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": msgEventIngested,
	})
}

type batchRequest struct {
	Events []json.RawMessage `json:"events"`
}

type batchError struct {
	Event json.RawMessage `json:"event"`
	Error string          `json:"error"`
}

type batchResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	SuccessCount int          `json:"successCount"`
	ErrorCount   int          `json:"errorCount"`
	Errors       []batchError `json:"errors,omitempty"`
}

// CreateBatch handles PUT /ingest: a best-effort, non-atomic batch. Each
// element is processed independently; one element's failure never aborts the
// others.
func (h *IngestHandler) CreateBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil || req.Events == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": errEventsArray,
		})
	}

	// All elements of a batch share one client address; resolve it at most
	// once per request.
	var location *geoip.Location
	resolveLocation := func(ip string) geoip.Location {
		if location == nil {
			loc := h.resolver.Resolve(c.UserContext(), ip)
			location = &loc
		}
		return *location
	}

	ip := getClientIP(c)
	headerUserAgent := c.Get("User-Agent")
	successCount := 0
	var batchErrors []batchError

	for _, raw := range req.Events {
		var params beaconRequest
		if err := json.Unmarshal(raw, &params); err != nil {
			batchErrors = append(batchErrors, batchError{Event: raw, Error: errInvalidBody})
			continue
		}

		if params.UserAgent == "" {
			params.UserAgent = headerUserAgent
		}

		// Bot elements count as successes without persisting.
		if useragent.IsBot(params.UserAgent) {
			successCount++
			continue
		}

		if msg := validateBeacon(&params); msg != "" {
			batchErrors = append(batchErrors, batchError{Event: raw, Error: msg})
			continue
		}

		beacon := beaconFromRequest(&params, ip, resolveLocation(ip))
		if err := events.Ingest(h.manager.GetConnection(), h.logger, beacon); err != nil {
			h.logger.Error("Batch ingestion error", slog.Any("error", err))
			batchErrors = append(batchErrors, batchError{Event: raw, Error: err.Error()})
			continue
		}
		successCount++
	}

	return c.Status(fiber.StatusOK).JSON(batchResponse{
		Success:      true,
		Message:      fmt.Sprintf("Ingested %d events", successCount),
		SuccessCount: successCount,
		ErrorCount:   len(batchErrors),
		Errors:       batchErrors,
	})
}

// validateBeacon checks the required fields, returning a descriptive message
// for the first violation.
func validateBeacon(params *beaconRequest) string {
	if params.ProjectID == "" || params.EventType == "" {
		return errMissingFields
	}
	if !events.EventType(params.EventType).Valid() {
		return errInvalidEventType
	}
	if events.EventType(params.EventType) == events.EventTypePageView && params.Path == "" {
		return errMissingPath
	}
	if events.EventType(params.EventType) == events.EventTypeCustomEvent && params.EventName == "" {
		return errMissingEventName
	}
	return ""
}

func beaconFromRequest(params *beaconRequest, ip string, location geoip.Location) *events.Beacon {
	return &events.Beacon{
		ProjectID:  params.ProjectID,
		EventType:  events.EventType(params.EventType),
		VisitorID:  params.VisitorID,
		Path:       params.Path,
		EventName:  params.EventName,
		Properties: params.Properties,
		Referrer:   params.Referrer,
		UserAgent:  params.UserAgent,
		IPAddress:  ip,
		City:       location.City,
		Region:     location.Region,
		Country:    location.Country,
	}
}
