package main

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/queue"
)

func TestAuditHandler(t *testing.T) {
	handler := auditHandler(logging.NewNopLogger())
	counter := metrics.UsageAuditedTotal.WithLabelValues("/usage/increment", "none")
	before := testutil.ToFloat64(counter)

	err := handler(&queue.UsageMessage{ID: 1, UserID: "u-1", Endpoint: "/usage/increment", Method: "POST"})

	assert.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
