package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"beaconly/internal/events"
	"beaconly/internal/testsupport"
)

func postIngest(t *testing.T, payload interface{}, secret string) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	// Keeps the geolocation path local so no outbound lookup happens.
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func validPageView() map[string]interface{} {
	return map[string]interface{}{
		"projectId": "proj-1",
		"eventType": "page_view",
		"visitorId": "visitor-1",
		"path":      "/pricing",
		"userAgent": "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0",
	}
}

func TestIngestAuthentication(t *testing.T) {
	t.Run("rejects a missing token", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		app := testsupport.NewTestApp(t, db)

		resp, err := app.Test(postIngest(t, validPageView(), ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Unauthorized", decodeBody(t, resp)["error"])
	})

	t.Run("rejects a wrong token", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		app := testsupport.NewTestApp(t, db)

		resp, err := app.Test(postIngest(t, validPageView(), "wrong-secret"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unset server secret is a configuration error", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		cfg := testsupport.NewTestConfig()
		cfg.MetricsSecret = ""
		app := testsupport.NewTestAppWithConfig(t, db, cfg)

		resp, err := app.Test(postIngest(t, validPageView(), "anything"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Server configuration error", decodeBody(t, resp)["error"])
	})
}

func TestIngestValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]interface{}
		wantErr string
	}{
		{
			name:    "missing projectId",
			payload: map[string]interface{}{"eventType": "page_view", "path": "/"},
			wantErr: "Missing required fields: projectId, eventType",
		},
		{
			name:    "missing eventType",
			payload: map[string]interface{}{"projectId": "proj-1", "path": "/"},
			wantErr: "Missing required fields: projectId, eventType",
		},
		{
			name:    "invalid eventType",
			payload: map[string]interface{}{"projectId": "proj-1", "eventType": "impression"},
			wantErr: "Invalid eventType. Must be page_view or custom_event",
		},
		{
			name:    "page view without path",
			payload: map[string]interface{}{"projectId": "proj-1", "eventType": "page_view"},
			wantErr: "page_view events require a path",
		},
		{
			name:    "custom event without name",
			payload: map[string]interface{}{"projectId": "proj-1", "eventType": "custom_event"},
			wantErr: "custom_event events require an eventName",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := testsupport.SetupTestDB(t)
			app := testsupport.NewTestApp(t, db)

			resp, err := app.Test(postIngest(t, tc.payload, testsupport.TestSecret))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.wantErr, decodeBody(t, resp)["error"])

			var count int64
			require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
			assert.Zero(t, count, "no row may be written for a rejected beacon")
		})
	}
}

func TestIngestAcceptsPageView(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.NewTestApp(t, db)

	resp, err := app.Test(postIngest(t, validPageView(), testsupport.TestSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Event ingested successfully", body["message"])

	var pageView events.PageView
	require.NoError(t, db.First(&pageView).Error)
	assert.Equal(t, "proj-1", pageView.ProjectID)
	require.NotNil(t, pageView.IPAddress)
	assert.Equal(t, "127.0.0.1", *pageView.IPAddress)
	require.NotNil(t, pageView.City)
	assert.Equal(t, "Local", *pageView.City)

	var eventCount int64
	require.NoError(t, db.Model(&events.Event{}).Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}

func TestIngestDropsBotsSilently(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.NewTestApp(t, db)

	payload := validPageView()
	payload["userAgent"] = "Googlebot/2.1 (+http://www.google.com/bot.html)"

	resp, err := app.Test(postIngest(t, payload, testsupport.TestSecret))
	require.NoError(t, err)

	// Indistinguishable from a successful ingestion.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["success"])

	assertNoRows(t, db)
}

func TestIngestAnswersPreflight(t *testing.T) {
	// Beacons are sent cross-origin from the client sites, so the browser
	// preflights the POST. The preflight itself carries no secret.
	db := testsupport.SetupTestDB(t)
	app := testsupport.NewTestApp(t, db)

	req := httptest.NewRequest(http.MethodOptions, "/ingest", nil)
	req.Header.Set("Origin", "https://customer.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type,Authorization")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestIngestResponseAllowsCrossOrigin(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.NewTestApp(t, db)

	req := postIngest(t, validPageView(), testsupport.TestSecret)
	req.Header.Set("Origin", "https://customer.example.com")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestIngestBotCheckUsesUserAgentHeader(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.NewTestApp(t, db)

	payload := validPageView()
	delete(payload, "userAgent")

	req := postIngest(t, payload, testsupport.TestSecret)
	req.Header.Set("User-Agent", "Googlebot/2.1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assertNoRows(t, db)
}

func assertNoRows(t *testing.T, db *gorm.DB) {
	t.Helper()

	var eventCount, pageViewCount, customEventCount int64
	require.NoError(t, db.Model(&events.Event{}).Count(&eventCount).Error)
	require.NoError(t, db.Model(&events.PageView{}).Count(&pageViewCount).Error)
	require.NoError(t, db.Model(&events.CustomEvent{}).Count(&customEventCount).Error)
	assert.Zero(t, eventCount)
	assert.Zero(t, pageViewCount)
	assert.Zero(t, customEventCount)
}

func putIngestBatch(t *testing.T, payload interface{}, secret string) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/ingest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	return req
}

func TestIngestBatch(t *testing.T) {
	t.Run("requires an events array", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		app := testsupport.NewTestApp(t, db)

		resp, err := app.Test(putIngestBatch(t, map[string]interface{}{"event": validPageView()}, testsupport.TestSecret))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Batch ingestion requires an events array", decodeBody(t, resp)["error"])
	})

	t.Run("isolates failures per element", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		app := testsupport.NewTestApp(t, db)

		batch := map[string]interface{}{
			"events": []map[string]interface{}{
				validPageView(),
				{"projectId": "proj-1", "eventType": "custom_event", "eventName": "signup"},
				// One element missing projectId, one missing path.
				{"eventType": "page_view", "path": "/broken"},
				{"projectId": "proj-1", "eventType": "page_view"},
			},
		}

		resp, err := app.Test(putIngestBatch(t, batch, testsupport.TestSecret))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(2), body["successCount"])
		assert.Equal(t, float64(2), body["errorCount"])

		errs, ok := body["errors"].([]interface{})
		require.True(t, ok)
		require.Len(t, errs, 2)

		// The failing element's original payload is recoverable.
		first := errs[0].(map[string]interface{})
		assert.Equal(t, "Missing required fields: projectId, eventType", first["error"])
		original := first["event"].(map[string]interface{})
		assert.Equal(t, "/broken", original["path"])

		var pageViewCount, customEventCount int64
		require.NoError(t, db.Model(&events.PageView{}).Count(&pageViewCount).Error)
		require.NoError(t, db.Model(&events.CustomEvent{}).Count(&customEventCount).Error)
		assert.Equal(t, int64(1), pageViewCount)
		assert.Equal(t, int64(1), customEventCount)
	})

	t.Run("bots count as successes without persisting", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		app := testsupport.NewTestApp(t, db)

		bot := validPageView()
		bot["userAgent"] = "Googlebot/2.1"

		batch := map[string]interface{}{
			"events": []map[string]interface{}{bot, bot, validPageView()},
		}

		resp, err := app.Test(putIngestBatch(t, batch, testsupport.TestSecret))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, float64(3), body["successCount"])
		assert.Equal(t, float64(0), body["errorCount"])
		_, hasErrors := body["errors"]
		assert.False(t, hasErrors, "errors must be omitted when empty")

		var pageViewCount int64
		require.NoError(t, db.Model(&events.PageView{}).Count(&pageViewCount).Error)
		assert.Equal(t, int64(1), pageViewCount)
	})

	t.Run("bot check falls back to the request header", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		app := testsupport.NewTestApp(t, db)

		// No per-element userAgent: the sending client identifies itself
		// only through the request header, same as the single-event path.
		first := validPageView()
		delete(first, "userAgent")
		second := validPageView()
		delete(second, "userAgent")

		req := putIngestBatch(t, map[string]interface{}{
			"events": []map[string]interface{}{first, second},
		}, testsupport.TestSecret)
		req.Header.Set("User-Agent", "Googlebot/2.1")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, float64(2), body["successCount"])
		assert.Equal(t, float64(0), body["errorCount"])

		assertNoRows(t, db)
	})

	t.Run("requires authentication", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		app := testsupport.NewTestApp(t, db)

		resp, err := app.Test(putIngestBatch(t, map[string]interface{}{"events": []interface{}{}}, ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
