package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHTTPRequestLabelsStatus(t *testing.T) {
	before := testutil.CollectAndCount(httpRequestDurationSeconds)

	ObserveHTTPRequest("POST", "/v1/jobs", 202, 5*time.Millisecond)
	ObserveHTTPRequest("POST", "/v1/jobs", 409, 5*time.Millisecond)

	// Distinct status codes for one route produce distinct series.
	assert.Equal(t, before+2, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestObserveEventDropped(t *testing.T) {
	before := testutil.ToFloat64(eventsDroppedTotal)

	ObserveEventDropped()
	ObserveEventDropped()

	assert.InDelta(t, before+2, testutil.ToFloat64(eventsDroppedTotal), 0.001)
}
