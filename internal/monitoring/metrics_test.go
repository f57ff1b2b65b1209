package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCollector(t *testing.T) {
	CollectorRunsTotal.Reset()
	CollectorDuration.Reset()

	RecordCollector("ndvi", 2*time.Second, true)
	RecordCollector("ndvi", time.Second, false)
	RecordCollector("ndvi", time.Second, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(CollectorRunsTotal.WithLabelValues("ndvi", StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(CollectorRunsTotal.WithLabelValues("ndvi", StatusError)))
	assert.Equal(t, 1, testutil.CollectAndCount(CollectorDuration))
}

func TestRecordNullStats(t *testing.T) {
	NullStatsTotal.Reset()

	RecordNullStats([]string{"aod_mean", "pct_green"})
	RecordNullStats([]string{"aod_mean"})
	RecordNullStats(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(NullStatsTotal.WithLabelValues("aod_mean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(NullStatsTotal.WithLabelValues("pct_green")))
}

func TestRecordBestUse(t *testing.T) {
	BestUseTotal.Reset()
	RecordBestUse("greenspace")
	assert.Equal(t, 1.0, testutil.ToFloat64(BestUseTotal.WithLabelValues("greenspace")))
}

func TestRecordLLMRequest(t *testing.T) {
	LLMRequestsTotal.Reset()
	LLMRequestDuration.Reset()

	RecordLLMRequest("xai", 3*time.Second, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(LLMRequestsTotal.WithLabelValues("xai", StatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(LLMRequestsTotal.WithLabelValues("xai", StatusError)))
}

func TestRecordExternalRequest(t *testing.T) {
	ExternalRequestsTotal.Reset()
	RecordExternalRequest("geostats", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(ExternalRequestsTotal.WithLabelValues("geostats", StatusError)))
}
