package tts

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
)

type fakeLedger struct {
	mu      sync.Mutex
	used    int
	limit   int
	hard    bool
	readErr error
	incErr  error
}

func (f *fakeLedger) CheckLimit(ctx context.Context, userID string) (quota.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return quota.Snapshot{}, f.readErr
	}
	return quota.NewSnapshot(f.used, f.limit), nil
}

func (f *fakeLedger) Increment(ctx context.Context, userID string) (quota.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return quota.Snapshot{}, f.incErr
	}
	f.used++
	return quota.NewSnapshot(f.used, f.limit), nil
}

func (f *fakeLedger) Blocks(s quota.Snapshot) bool {
	return f.hard && s.Exceeded
}

type fakeSynthesizer struct {
	calls  []*Request
	result *Result
	err    error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func okSynth() *fakeSynthesizer {
	return &fakeSynthesizer{result: &Result{AudioBase64: "UklGRg==", SampleRate: 22050, Format: "wav"}}
}

func strPtr(s string) *string { return &s }

func TestSynthesizeSuccessIncrements(t *testing.T) {
	ledger := &fakeLedger{used: 3, limit: 20}
	synth := okSynth()
	proxy := NewProxy(synth, ledger, nil)

	out, err := proxy.Synthesize(context.Background(), "u-1", Input{Text: "  hello  "})
	require.NoError(t, err)

	assert.Equal(t, "UklGRg==", out.Result.AudioBase64)
	assert.Equal(t, 4, out.Usage.Used)
	assert.Equal(t, 16, out.Usage.Remaining)
	assert.False(t, out.Exceeded)
	assert.Empty(t, out.Warning)
	assert.Equal(t, "en", out.Language)

	require.Len(t, synth.calls, 1)
	assert.Equal(t, "hello", synth.calls[0].Text)
	assert.Equal(t, DefaultLanguage, synth.calls[0].Language)
	assert.Equal(t, DefaultSpeakerID, synth.calls[0].SpeakerID)
}

func TestSynthesizeReachingLimitWarns(t *testing.T) {
	ledger := &fakeLedger{used: 19, limit: 20}
	proxy := NewProxy(okSynth(), ledger, nil)

	out, err := proxy.Synthesize(context.Background(), "u-1", Input{Text: "hi", Language: strPtr("fr")})
	require.NoError(t, err)

	assert.Equal(t, 20, out.Usage.Used)
	assert.True(t, out.Exceeded)
	assert.Equal(t, quota.LimitWarning, out.Warning)
	assert.Equal(t, "fr", out.Language)
}

func TestSynthesizeSoftPolicyProceedsPastLimit(t *testing.T) {
	ledger := &fakeLedger{used: 25, limit: 20}
	synth := okSynth()
	proxy := NewProxy(synth, ledger, nil)

	out, err := proxy.Synthesize(context.Background(), "u-1", Input{Text: "hi"})
	require.NoError(t, err)

	assert.Len(t, synth.calls, 1)
	assert.Equal(t, 26, out.Usage.Used)
	assert.True(t, out.Exceeded)
}

func TestSynthesizeHardPolicyBlocks(t *testing.T) {
	ledger := &fakeLedger{used: 20, limit: 20, hard: true}
	synth := okSynth()
	proxy := NewProxy(synth, ledger, nil)

	out, err := proxy.Synthesize(context.Background(), "u-1", Input{Text: "hi"})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeQuotaExceeded, appErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, appErr.HTTPCode)
	assert.Empty(t, synth.calls)
	assert.Equal(t, 20, out.Usage.Used)
	assert.Equal(t, 20, ledger.used)
}

func TestSynthesizeValidation(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"empty text", Input{Text: ""}},
		{"blank text", Input{Text: "   "}},
		{"blank language", Input{Text: "hi", Language: strPtr("  ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{used: 2, limit: 20}
			synth := okSynth()
			proxy := NewProxy(synth, ledger, nil)

			out, err := proxy.Synthesize(context.Background(), "u-1", tt.in)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
			require.NotNil(t, out)
			assert.Equal(t, 2, out.Usage.Used)
			assert.Empty(t, synth.calls)
			assert.Equal(t, 2, ledger.used)
		})
	}
}

func TestSynthesizeUpstreamFailureDoesNotBill(t *testing.T) {
	ledger := &fakeLedger{used: 5, limit: 20}
	synth := &fakeSynthesizer{err: &UpstreamError{StatusCode: http.StatusBadRequest, Message: "Unsupported language"}}
	proxy := NewProxy(synth, ledger, nil)

	out, err := proxy.Synthesize(context.Background(), "u-1", Input{Text: "hi", Language: strPtr("xx")})

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUpstream, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPCode)
	assert.Equal(t, "Unsupported language", appErr.Message)
	assert.Equal(t, 5, out.Usage.Used)
	assert.Equal(t, 5, ledger.used)
}

func TestSynthesizeUnexpectedErrors(t *testing.T) {
	t.Run("quota read", func(t *testing.T) {
		proxy := NewProxy(okSynth(), &fakeLedger{readErr: errors.New("db down")}, nil)
		out, err := proxy.Synthesize(context.Background(), "u-1", Input{Text: "hi"})
		assert.Nil(t, out)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	})

	t.Run("upstream", func(t *testing.T) {
		proxy := NewProxy(&fakeSynthesizer{err: errors.New("marshal")}, &fakeLedger{limit: 20}, nil)
		_, err := proxy.Synthesize(context.Background(), "u-1", Input{Text: "hi"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	})

	t.Run("increment", func(t *testing.T) {
		proxy := NewProxy(okSynth(), &fakeLedger{limit: 20, incErr: errors.New("db down")}, nil)
		out, err := proxy.Synthesize(context.Background(), "u-1", Input{Text: "hi"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
		assert.Nil(t, out.Result)
	})
}
