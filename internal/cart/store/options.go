package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

// Recorder receives mutation outcomes for metrics.
type Recorder interface {
	ObserveMutation(op, outcome string, elapsed time.Duration)
	ObserveDecodeFailure(reason string)
}

// Publisher announces a successful write to other processes sharing the
// same record store.
type Publisher interface {
	PublishChange(ctx context.Context, key string) error
}

type Option func(*Store)

func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.metrics = r
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, string, time.Duration) {}
func (nopRecorder) ObserveDecodeFailure(string)                   {}
