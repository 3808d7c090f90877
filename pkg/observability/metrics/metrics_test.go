package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	before := testutil.ToFloat64(prescriptionsTotal.WithLabelValues("failure"))
	ObservePrescription(time.Second, errors.New("bucket unavailable"))
	assert.Equal(t, before+1, testutil.ToFloat64(prescriptionsTotal.WithLabelValues("failure")))

	ObserveAuthAttempt("PATIENT", "login", nil)
	assert.GreaterOrEqual(t, testutil.ToFloat64(authAttemptsTotal.WithLabelValues("PATIENT", "login", "success")), 1.0)
}

func TestHandlerExposesRegistry(t *testing.T) {
	ObserveHTTPRequest(http.MethodGet, "/api/patient/doctors", http.StatusOK, 15*time.Millisecond)
	ObserveDirectoryCache(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mediconnect_http_requests_total{method="GET",route="/api/patient/doctors",status_code="200"}`)
	assert.Contains(t, string(body), `mediconnect_doctor_directory_cache_total{result="hit"}`)
}
