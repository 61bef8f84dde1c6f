package tts

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
)

const (
	// DefaultLanguage is used when a request omits the language
	DefaultLanguage = "en"
	// DefaultSpeakerID is used when a request omits the speaker
	DefaultSpeakerID = "default"
)

// Synthesis outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeBlocked  = "blocked"
	OutcomeUpstream = "upstream_error"
	OutcomeInternal = "internal_error"
)

// QuotaLedger is the part of the quota ledger the proxy needs
type QuotaLedger interface {
	CheckLimit(ctx context.Context, userID string) (quota.Snapshot, error)
	Increment(ctx context.Context, userID string) (quota.Snapshot, error)
	Blocks(s quota.Snapshot) bool
}

// Input is a synthesis request as received from a client. A nil Language
// means the field was omitted.
type Input struct {
	Text             string  `json:"text"`
	Language         *string `json:"language"`
	SpeakerID        string  `json:"speaker_id"`
	SpeakerWavBase64 string  `json:"speaker_wav_base64"`
	SpeakerWavURL    string  `json:"speaker_wav_url"`
}

// Outcome is the result of a proxied synthesis. Usage is always the quota
// state to report: pre-call on failure, post-call on success.
type Outcome struct {
	Result   *Result
	Language string
	Usage    quota.Snapshot
	Exceeded bool
	Warning  string
}

// Proxy forwards synthesis requests upstream and bills successful calls
type Proxy struct {
	upstream Synthesizer
	ledger   QuotaLedger
	logger   *logging.Logger
}

// NewProxy creates a proxy
func NewProxy(upstream Synthesizer, ledger QuotaLedger, logger *logging.Logger) *Proxy {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Proxy{
		upstream: upstream,
		ledger:   ledger,
		logger:   logger,
	}
}

// Synthesize runs one billable synthesis for userID. When err is not nil and
// the quota could be read, the returned Outcome still carries the usage snapshot.
func (p *Proxy) Synthesize(ctx context.Context, userID string, in Input) (*Outcome, error) {
	before, err := p.ledger.CheckLimit(ctx, userID)
	if err != nil {
		metrics.RecordSynthesis(OutcomeInternal)
		return nil, apperrors.Internal(err)
	}
	out := &Outcome{Usage: before, Exceeded: before.Exceeded, Warning: before.Warning()}

	req, appErr := buildRequest(in)
	if appErr != nil {
		metrics.RecordSynthesis(OutcomeInvalid)
		return out, appErr
	}
	out.Language = req.Language

	if p.ledger.Blocks(before) {
		metrics.RecordSynthesis(OutcomeBlocked)
		p.logger.LogQuotaEvent(userID, "blocked", before.Used, before.Limit)
		return out, apperrors.QuotaExceeded(quota.LimitWarning)
	}

	start := time.Now()
	result, err := p.upstream.Synthesize(ctx, req)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			p.logger.LogUpstreamCall(userID, req.Language, upErr.StatusCode, time.Since(start), err)
			metrics.RecordSynthesis(OutcomeUpstream)
			return out, apperrors.Upstream(upErr.StatusCode, upErr.Message, err)
		}
		p.logger.LogUpstreamCall(userID, req.Language, 0, time.Since(start), err)
		metrics.RecordSynthesis(OutcomeInternal)
		return out, apperrors.Internal(err)
	}
	p.logger.LogUpstreamCall(userID, req.Language, http.StatusOK, time.Since(start), nil)

	after, err := p.ledger.Increment(ctx, userID)
	if err != nil {
		metrics.RecordSynthesis(OutcomeInternal)
		return out, apperrors.Internal(err)
	}

	metrics.RecordSynthesis(OutcomeSuccess)
	out.Result = result
	out.Usage = after
	out.Exceeded = after.Exceeded
	out.Warning = after.Warning()
	return out, nil
}

func buildRequest(in Input) (*Request, *apperrors.AppError) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, apperrors.Validation("Text is required")
	}

	language := DefaultLanguage
	if in.Language != nil {
		language = strings.TrimSpace(*in.Language)
		if language == "" {
			return nil, apperrors.Validation("Language is required")
		}
	}

	speaker := strings.TrimSpace(in.SpeakerID)
	if speaker == "" {
		speaker = DefaultSpeakerID
	}

	return &Request{
		Text:             text,
		Language:         language,
		SpeakerID:        speaker,
		SpeakerWavBase64: in.SpeakerWavBase64,
		SpeakerWavURL:    strings.TrimSpace(in.SpeakerWavURL),
	}, nil
}
