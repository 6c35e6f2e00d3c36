package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectorRecordsHTTPMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	handlerInvoked := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	instrumented := collector.InstrumentHandler(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	instrumented.ServeHTTP(rr, req)

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `hypebot_http_requests_total{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}

	if !strings.Contains(body, `hypebot_http_request_duration_seconds_count{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestCollectorRecordsBotMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.RecordPost("primary")
	collector.RecordPost("primary")
	collector.RecordPublishFailure("secondary")
	collector.RecordCycle("posted")
	collector.RecordCycle("duplicate")
	collector.RecordFetch("none")
	collector.RecordGenericFallback()

	body := scrape(t, collector)

	expected := []string{
		`hypebot_bot_posts_total{path="primary"} 2`,
		`hypebot_bot_publish_failures_total{path="secondary"} 1`,
		`hypebot_bot_cycles_total{outcome="posted"} 1`,
		`hypebot_bot_cycles_total{outcome="duplicate"} 1`,
		`hypebot_bot_mention_fetches_total{outcome="none"} 1`,
		`hypebot_bot_generic_fallbacks_total 1`,
	}
	for _, want := range expected {
		if !strings.Contains(body, want) {
			t.Errorf("metric %q not found in scrape body", want)
		}
	}
}

func scrape(t *testing.T, collector *Collector) string {
	t.Helper()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}
