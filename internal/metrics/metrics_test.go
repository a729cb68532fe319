package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRedirect(t *testing.T) {
	before := testutil.ToFloat64(RedirectsTotal.WithLabelValues(OutcomeGone))

	RecordRedirect(OutcomeGone)
	RecordRedirect(OutcomeGone)

	assert.Equal(t, before+2, testutil.ToFloat64(RedirectsTotal.WithLabelValues(OutcomeGone)))
}

func TestRecordReport(t *testing.T) {
	before := testutil.CollectAndCount(ReportDuration)

	RecordReport("metrics_test", time.Now().Add(-10*time.Millisecond))

	assert.Equal(t, before+1, testutil.CollectAndCount(ReportDuration))
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest("GET", "/:shortCode", 302, 3*time.Millisecond)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), 1)
}
