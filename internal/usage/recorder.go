package usage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/queue"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

const (
	// DefaultQueueSize bounds the number of pending events
	DefaultQueueSize = 1024
	// DefaultWorkers is the number of goroutines writing usage logs
	DefaultWorkers = 2

	sinkTimeout = 10 * time.Second
)

// ErrClosed is returned by Record after Shutdown
var ErrClosed = errors.New("usage recorder is shut down")

// ErrQueueFull is returned by Record when the event was dropped
var ErrQueueFull = errors.New("usage queue is full")

// Event is one billable call to be written to the audit log
type Event struct {
	UserID       string
	Endpoint     string
	Method       string
	LanguageCode string
	AudioBase64  string
	AudioFormat  string
	Timestamp    time.Time
}

// Store persists usage logs
type Store interface {
	GetLanguageIDByCode(ctx context.Context, code string) (int, error)
	CreateUsageLog(ctx context.Context, entry *models.UsageLog) error
}

// LanguageCache caches language code lookups
type LanguageCache interface {
	GetLanguageID(ctx context.Context, code string) (int, bool, error)
	SetLanguageID(ctx context.Context, code string, id int) error
}

// Publisher fans stored usage logs out to other consumers
type Publisher interface {
	PublishUsage(ctx context.Context, msg *queue.UsageMessage) error
}

// Archiver keeps a copy of synthesized audio
type Archiver interface {
	ArchiveAudio(ctx context.Context, userID, audioBase64, format string) (string, error)
}

// Option configures a Recorder
type Option func(*Recorder)

// WithLanguageCache puts a cache in front of language lookups
func WithLanguageCache(c LanguageCache) Option {
	return func(r *Recorder) { r.cache = c }
}

// WithPublisher publishes every stored usage log
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithArchiver archives the audio attached to events
func WithArchiver(a Archiver) Option {
	return func(r *Recorder) { r.archiver = a }
}

// WithQueueSize sets the capacity of the event queue
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// Recorder writes usage logs off the request path
type Recorder struct {
	store     Store
	cache     LanguageCache
	publisher Publisher
	archiver  Archiver
	logger    *logging.Logger

	queueSize int
	events    chan Event

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewRecorder creates a recorder. Start must be called before events are written.
func NewRecorder(store Store, logger *logging.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &Recorder{
		store:     store,
		logger:    logger,
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.events = make(chan Event, r.queueSize)
	return r
}

// Start launches the workers
func (r *Recorder) Start(workers int) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.logger.Infof("Usage recorder started with %d workers", workers)
}

// Record queues an event without blocking. A full queue drops the event.
func (r *Recorder) Record(evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.RecordUsageEvent(metrics.UsageDropped)
		return ErrClosed
	}

	select {
	case r.events <- evt:
		metrics.SetUsageQueueDepth(len(r.events))
		return nil
	default:
		metrics.RecordUsageEvent(metrics.UsageDropped)
		r.logger.WithUserID(evt.UserID).
			WithField("endpoint", evt.Endpoint).
			Warn("Usage queue full, dropping event")
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued events to be written
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.events)
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Usage recorder drained")
		return nil
	case <-ctx.Done():
		r.logger.Warnf("Usage recorder shutdown interrupted with %d events pending", len(r.events))
		return ctx.Err()
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for evt := range r.events {
		metrics.SetUsageQueueDepth(len(r.events))
		r.process(evt)
	}
}

func (r *Recorder) process(evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	code := strings.ToLower(strings.TrimSpace(evt.LanguageCode))

	entry := &models.UsageLog{
		UserID:    evt.UserID,
		Endpoint:  evt.Endpoint,
		Method:    evt.Method,
		CreatedAt: evt.Timestamp,
	}

	if code != "" {
		id, err := r.languageID(ctx, code)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				metrics.RecordUsageEvent(metrics.UsageSkipped)
				r.logger.WithUserID(evt.UserID).
					WithField("language", code).
					Warn("Unknown language code, usage not logged")
				return
			}
			metrics.RecordUsageEvent(metrics.UsageFailed)
			r.logger.LogUsageEvent(evt.UserID, evt.Endpoint, code, metrics.UsageFailed, err)
			return
		}
		entry.LanguageID = &id
	}

	if err := r.store.CreateUsageLog(ctx, entry); err != nil {
		metrics.RecordUsageEvent(metrics.UsageFailed)
		r.logger.LogUsageEvent(evt.UserID, evt.Endpoint, code, metrics.UsageFailed, err)
		return
	}
	metrics.RecordUsageEvent(metrics.UsageLogged)
	r.logger.LogUsageEvent(evt.UserID, evt.Endpoint, code, metrics.UsageLogged, nil)

	var audioKey string
	if r.archiver != nil && evt.AudioBase64 != "" {
		key, err := r.archiver.ArchiveAudio(ctx, evt.UserID, evt.AudioBase64, evt.AudioFormat)
		if err != nil {
			r.logger.WithUserID(evt.UserID).ErrorWithErr("Failed to archive audio", err)
		} else {
			audioKey = key
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishUsage(ctx, queue.NewUsageMessage(entry, code, audioKey)); err != nil {
			metrics.RecordError("usage", "publish")
			r.logger.WithUserID(evt.UserID).ErrorWithErr("Failed to publish usage event", err)
			return
		}
		metrics.RecordUsageEvent(metrics.UsagePublished)
	}
}

func (r *Recorder) languageID(ctx context.Context, code string) (int, error) {
	if r.cache != nil {
		id, ok, err := r.cache.GetLanguageID(ctx, code)
		if err != nil {
			r.logger.WithError(err).Warn("Language cache lookup failed")
		} else if ok {
			metrics.RecordCacheAccess("language", true)
			return id, nil
		}
		metrics.RecordCacheAccess("language", false)
	}

	id, err := r.store.GetLanguageIDByCode(ctx, code)
	if err != nil {
		return 0, err
	}

	if r.cache != nil {
		if err := r.cache.SetLanguageID(ctx, code, id); err != nil {
			r.logger.WithError(err).Warn("Failed to cache language id")
		}
	}
	return id, nil
}
