package observability

import (
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetrics(t *testing.T) {
	t.Run("counter_increments_per_label_set", func(t *testing.T) {
		counter := HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/products/{productID}/chat", "200")
		before := testutil.ToFloat64(counter)

		counter.Inc()
		counter.Inc()

		assert.Equal(t, before+2, testutil.ToFloat64(counter))
	})

	t.Run("histogram_accepts_observations", func(t *testing.T) {
		labels := HTTPRequestDuration.WithLabelValues("POST", "/api/v1/purchases/{purchaseID}/chat", "201")
		for i := 0; i < 10; i++ {
			labels.Observe(0.01 * float64(i+1))
		}
		assert.NotNil(t, HTTPRequestDuration)
	})
}

func TestChatMetrics(t *testing.T) {
	tests := []struct {
		name  string
		inc   func()
		value func() float64
	}{
		{
			name:  "messages",
			inc:   func() { ChatMessagesTotal.WithLabelValues("product", "viewer").Inc() },
			value: func() float64 { return testutil.ToFloat64(ChatMessagesTotal.WithLabelValues("product", "viewer")) },
		},
		{
			name:  "polls",
			inc:   func() { ChatPollsTotal.WithLabelValues("purchase", "incremental").Inc() },
			value: func() float64 { return testutil.ToFloat64(ChatPollsTotal.WithLabelValues("purchase", "incremental")) },
		},
		{
			name:  "access_denied",
			inc:   func() { ChatAccessDeniedTotal.WithLabelValues("product").Inc() },
			value: func() float64 { return testutil.ToFloat64(ChatAccessDeniedTotal.WithLabelValues("product")) },
		},
		{
			name:  "storage_degraded",
			inc:   func() { ChatStorageDegradedTotal.WithLabelValues("purchase").Inc() },
			value: func() float64 { return testutil.ToFloat64(ChatStorageDegradedTotal.WithLabelValues("purchase")) },
		},
		{
			name:  "events_published",
			inc:   func() { ChatEventsPublishedTotal.WithLabelValues("product", "success").Inc() },
			value: func() float64 { return testutil.ToFloat64(ChatEventsPublishedTotal.WithLabelValues("product", "success")) },
		},
		{
			name:  "notifications",
			inc:   func() { NotificationsCreatedTotal.WithLabelValues("created").Inc() },
			value: func() float64 { return testutil.ToFloat64(NotificationsCreatedTotal.WithLabelValues("created")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.value()
			tt.inc()
			assert.Equal(t, before+1, tt.value())
		})
	}
}

func TestRecordDBStats(t *testing.T) {
	RecordDBStats(sql.DBStats{OpenConnections: 7, InUse: 3, Idle: 4})

	assert.Equal(t, float64(7), testutil.ToFloat64(DBConnectionsOpen))
	assert.Equal(t, float64(3), testutil.ToFloat64(DBConnectionsInUse))
	assert.Equal(t, float64(4), testutil.ToFloat64(DBConnectionsIdle))
}

func TestDBQueryDuration(t *testing.T) {
	DBQueryDuration.WithLabelValues("insert", "chat_messages").Observe(0.002)
	DBQueryDuration.WithLabelValues("select", "chat_messages").Observe(0.01)
	assert.NotNil(t, DBQueryDuration)
}
