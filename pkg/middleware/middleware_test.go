package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studykit/qadex/pkg/metrics"
)

// Registered once; prometheus.MustRegister panics on duplicates.
var testMetrics = metrics.New()

func TestRequestIDGenerated(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, captured)
	assert.Equal(t, captured, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReusesCallerID(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied-id", captured)
	assert.Equal(t, "caller-supplied-id", rec.Header().Get(RequestIDHeader))
}

func TestGetRequestIDMissing(t *testing.T) {
	assert.Empty(t, GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}

func TestTimeoutPassesFastHandler(t *testing.T) {
	handler := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestTimeoutAnswers504(t *testing.T) {
	release := make(chan struct{})
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(release)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	<-release

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestMetricsRecordsRequests(t *testing.T) {
	handler := Metrics(testMetrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	before := testutil.ToFloat64(testMetrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/missing", "404"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	after := testutil.ToFloat64(testMetrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/missing", "404"))
	assert.Equal(t, before+1, after)
}

func TestStatusWriterDefaultsTo200(t *testing.T) {
	handler := Metrics(testMetrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	before := testutil.ToFloat64(testMetrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/implicit", "200"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/implicit", nil))

	after := testutil.ToFloat64(testMetrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/implicit", "200"))
	assert.Equal(t, before+1, after)
}
