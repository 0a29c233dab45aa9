package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"kickbase-market-lab/internal/domain"
)

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ReloadsTotal.WithLabelValues("success").Inc()
	m.ModelRMSE.Set(1234)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReloadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1234.0, testutil.ToFloat64(m.ModelRMSE))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordHelpers(t *testing.T) {
	at := time.Date(2025, time.October, 1, 22, 30, 0, 0, time.UTC)

	RecordReload("success", 42, at)
	assert.Equal(t, 42.0, testutil.ToFloat64(DefaultMetrics.ObservationsStored))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(DefaultMetrics.LastSuccessfulReload))

	RecordEvaluation(domain.Evaluation{RMSE: 1, MAE: 2, R2: 0.5, DirectionalPercent: 61})
	assert.Equal(t, 61.0, testutil.ToFloat64(DefaultMetrics.ModelDirectional))

	RecordRecommendations("market", 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(DefaultMetrics.Recommendations.WithLabelValues("market")))

	RecordFeatureRows(100, 12)
	assert.Equal(t, 12.0, testutil.ToFloat64(DefaultMetrics.FeatureRows.WithLabelValues("live")))
}
