package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHelpers(t *testing.T) {
	Init(nil, nil)

	ObserveRun("committed", 10*time.Millisecond)
	AddEntities(3, 1)
	ObserveLedgerPost(Result(errors.New("boom")), time.Millisecond)
	IncPriceFallback()

	assert.Equal(t, 1.0, testutil.ToFloat64(runTotal.WithLabelValues("committed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(entitiesTotal.WithLabelValues(entityProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(entitiesTotal.WithLabelValues(entitySkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(ledgerPostTotal.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(priceFallbackTotal))
}
