package lifecycle

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

type options struct {
	observer        Observer
	logger          *logrus.Logger
	now             func() time.Time
	defaultPageSize int
	maxPageSize     int
}

// Option configures an engine
type Option func(*options)

// WithObserver sets the observer notified of lifecycle events
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithLogger sets the logger; defaults to the logrus standard logger
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides time.Now, used for "recent" queries and timings
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPageLimits sets the page size used when none is given and the largest allowed
func WithPageLimits(defaultSize, maxSize int) Option {
	return func(o *options) {
		if defaultSize > 0 {
			o.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			o.maxPageSize = maxSize
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		observer:        nopObserver{},
		logger:          logrus.StandardLogger(),
		now:             time.Now,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.defaultPageSize > o.maxPageSize {
		o.defaultPageSize = o.maxPageSize
	}
	return o
}

// normalize clamps a client page into [defaultPageSize, maxPageSize]
func (o options) normalize(page Page) Page {
	if page.Index < 0 {
		page.Index = 0
	}
	if page.Size <= 0 {
		page.Size = o.defaultPageSize
	}
	if page.Size > o.maxPageSize {
		page.Size = o.maxPageSize
	}
	if page.Index > math.MaxInt/page.Size {
		page.Index = math.MaxInt / page.Size
	}
	return page
}
