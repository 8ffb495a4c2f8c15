package source

import (
	"fmt"
	"net/http"
	"time"
)

// Deps are the shared resources adapters are built with.
type Deps struct {
	Client    *http.Client
	UserAgent string
	Now       func() time.Time
}

func (d Deps) fetcher(config *Config) *fetcher {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &fetcher{
		client:    client,
		limiter:   NewHostLimiter(config.Settings.RateLimit, config.Settings.Burst),
		userAgent: d.UserAgent,
		timeout:   time.Duration(config.Settings.Timeout) * time.Second,
	}
}

func (d Deps) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// New builds the adapter matching the config kind.
func New(config *Config, deps Deps) (Adapter, error) {
	switch config.Kind {
	case KindFeed:
		return NewFeedAdapter(config, deps), nil
	case KindBoard:
		return NewBoardAdapter(config, deps), nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s", config.Kind)
	}
}
