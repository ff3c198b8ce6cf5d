package booking

import (
	"time"

	"go.uber.org/zap"
)

// Service is the booking core: availability, pricing, and the order lifecycle.
type Service struct {
	store        Store
	settings     SettingsProvider
	locker       Locker
	log          *zap.Logger
	now          func() time.Time
	readRetries  int
	retryBackoff time.Duration
}

type Option func(*Service)

// WithLocker replaces the in-process product lock, e.g. with a Redis lock shared by several API instances.
func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithReadRetries(n int, backoff time.Duration) Option {
	return func(s *Service) {
		if n >= 0 {
			s.readRetries = n
		}
		s.retryBackoff = backoff
	}
}

func NewService(store Store, settings SettingsProvider, opts ...Option) *Service {
	s := &Service{
		store:        store,
		settings:     settings,
		locker:       NewKeyedMutex(),
		log:          zap.NewNop(),
		now:          time.Now,
		readRetries:  3,
		retryBackoff: 50 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func productLockKey(productID string) string { return "product:" + productID }
