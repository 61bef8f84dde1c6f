package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/config"
)

func withMockTracer(t *testing.T) *mocktracer.MockTracer {
	prev := opentracing.GlobalTracer()
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })
	return tracer
}

func TestInitTracerDisabled(t *testing.T) {
	tracer, closer, err := InitTracer(config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NotNil(t, tracer)
	assert.NoError(t, closer.Close())
}

func TestStartClientSpan(t *testing.T) {
	tracer := withMockTracer(t)

	req, err := http.NewRequest(http.MethodPost, "http://tts.local/synthesize", nil)
	require.NoError(t, err)

	span, _ := StartClientSpan(context.Background(), "tts.synthesize", req)
	SetTag(span, "language", "en")
	LogError(span, errors.New("boom"))
	FinishSpan(span)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "tts.synthesize", spans[0].OperationName)
	assert.Equal(t, "en", spans[0].Tag("language"))
	assert.Equal(t, true, spans[0].Tag("error"))
	assert.Equal(t, "POST", spans[0].Tag("http.method"))

	// mocktracer injects its baggage headers
	assert.NotEmpty(t, req.Header.Get("Mockpfx-Ids-Traceid"))
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		FinishSpan(nil)
		LogError(nil, errors.New("ignored"))
		SetTag(nil, "k", "v")
	})
}
