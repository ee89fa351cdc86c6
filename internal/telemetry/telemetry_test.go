package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		logger, err := NewLogger(env, "debug")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}
	logger, err := NewLogger("production", "bogus")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObservePrediction(OutcomeOK, 2, 0.8)
	m.ObservePrediction(OutcomeInputError, 5, 0)
	m.SetBundle("v1", "random_forest", 120)

	body := scrape(t, m)
	assert.Contains(t, body, `symptom2disease_predict_requests_total{outcome="ok"} 1`)
	assert.Contains(t, body, `symptom2disease_predict_requests_total{outcome="input_error"} 1`)
	assert.Contains(t, body, "symptom2disease_predict_unknown_symptoms_total 2")
	assert.Contains(t, body, `symptom2disease_bundle_info{model_kind="random_forest",version="v1"} 120`)
	assert.Contains(t, body, "go_goroutines")

	m.SetBundle("v2", "bernoulli_nb", 80)
	assert.NotContains(t, scrape(t, m), `version="v1"`)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	m := NewMetrics()

	router := gin.New()
	router.Use(RequestLogger(zap.New(core), m))
	router.GET("/items/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, zap.InfoLevel, first.Level)
	assert.Equal(t, "/items/42", first.ContextMap()["path"])
	assert.Equal(t, zap.WarnLevel, logs.All()[1].Level)

	body := scrape(t, m)
	assert.Contains(t, body, `symptom2disease_http_requests_total{method="GET",route="/items/:id",status="204"} 1`)
	assert.Contains(t, body, `symptom2disease_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}
