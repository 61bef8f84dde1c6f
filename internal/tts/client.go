package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/config"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/tracing"
)

const (
	// DefaultTimeout bounds a single upstream synthesis call
	DefaultTimeout = 60 * time.Second

	defaultSynthesizePath = "/synthesize"
	genericUpstreamError  = "TTS service error"
	maxErrorBodySize      = 64 << 10
)

// Request is the body forwarded to the synthesis service
type Request struct {
	Text             string `json:"text"`
	Language         string `json:"language"`
	SpeakerID        string `json:"speaker_id,omitempty"`
	SpeakerWavBase64 string `json:"speaker_wav_base64,omitempty"`
	SpeakerWavURL    string `json:"speaker_wav_url,omitempty"`
}

// Result is the subset of the upstream response returned to callers
type Result struct {
	AudioBase64 string `json:"audio_base64"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Format      string `json:"format,omitempty"`
}

// UpstreamError describes a failed upstream call. StatusCode is the status to
// return to the caller.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Synthesizer produces audio for a request
type Synthesizer interface {
	Synthesize(ctx context.Context, req *Request) (*Result, error)
}

// Client calls the upstream synthesis service over HTTP
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     *logging.Logger
}

// NewClient creates an upstream client
func NewClient(cfg config.TTSConfig, logger *logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	path := cfg.SynthesizePath
	if path == "" {
		path = defaultSynthesizePath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + path,
		logger:     logger,
	}
}

// Synthesize posts the request upstream and decodes the audio payload
func (c *Client) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	span, _ := tracing.StartClientSpan(ctx, "tts.synthesize", httpReq)
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "tts.language", req.Language)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		upErr := transportError(err)
		metrics.RecordUpstreamCall("error", time.Since(start).Seconds())
		tracing.LogError(span, upErr)
		return nil, upErr
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	metrics.RecordUpstreamCall(status, time.Since(start).Seconds())
	tracing.SetTag(span, "http.status_code", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		upErr := &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
		tracing.LogError(span, upErr)
		return nil, upErr
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		upErr := &UpstreamError{StatusCode: http.StatusBadGateway, Message: "Invalid response from TTS service", Err: err}
		tracing.LogError(span, upErr)
		return nil, upErr
	}
	if result.AudioBase64 == "" {
		upErr := &UpstreamError{StatusCode: http.StatusBadGateway, Message: "TTS service returned no audio"}
		tracing.LogError(span, upErr)
		return nil, upErr
	}

	return &result, nil
}

func transportError(err error) *UpstreamError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamError{StatusCode: http.StatusGatewayTimeout, Message: "TTS service timed out", Err: err}
	}
	return &UpstreamError{StatusCode: http.StatusBadGateway, Message: "TTS service unavailable", Err: err}
}

// errorMessage pulls the upstream's own message out of an error body
func errorMessage(data []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return genericUpstreamError
	}

	for _, key := range []string{"error", "detail", "message"} {
		switch v := body[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return genericUpstreamError
}
