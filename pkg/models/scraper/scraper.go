// Package scraper screen-scrapes a legacy Outlook Web Access frontend: it
// logs a session in, walks paginated folder listings and fetches or deletes
// individual messages, caching what it has already seen.
package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mailscrape/weboutlook/pkg/base"
	"github.com/mailscrape/weboutlook/pkg/browser"
	"github.com/mailscrape/weboutlook/pkg/cache"
)

type OutlookWebScraper interface {
	Login() error
	GetInbox(refresh bool) ([]string, error)
	GetFolder(folderName string, refresh bool) ([]string, error)
	GetMessage(msgID string) ([]byte, error)
	DeleteMessage(msgID string) ([]byte, error)
	FlushCache()
}

type OutlookWebScraperImpl struct {
	browser  base.Browser
	domain   string
	username string
	password string
	timeout  time.Duration

	loggedIn bool
	baseHref string

	cache  *cache.Store
	logger *slog.Logger
	ctx    context.Context
}

type OutlookWebScraperOption func(*OutlookWebScraperImpl) error

func NewOutlookWebScraper(opts ...OutlookWebScraperOption) (*OutlookWebScraperImpl, error) {
	var scr OutlookWebScraperImpl
	for _, opt := range opts {
		err := opt(&scr)
		if err != nil {
			return nil, err
		}
	}

	if scr.domain == "" {
		return nil, errors.New("requires domain")
	}

	if scr.username == "" {
		return nil, errors.New("requires username")
	}

	if scr.password == "" {
		return nil, errors.New("requires password")
	}

	if scr.logger == nil {
		return nil, errors.New("requires slogger")
	}

	// Every log line of this scrape session carries the same id.
	scr.logger = scr.logger.With(slog.String("session_id", uuid.NewString()))

	if scr.browser == nil {
		var browserOpts []browser.Option
		if scr.timeout > 0 {
			browserOpts = append(browserOpts, browser.WithTimeout(scr.timeout))
		}
		b, err := browser.New(browserOpts...)
		if err != nil {
			return nil, err
		}
		scr.browser = b
	}

	if scr.cache == nil {
		scr.cache = cache.New()
	}

	if scr.ctx == nil {
		scr.ctx = context.Background()
	}

	return &scr, nil
}

// WithCredentials binds the scraper to one OWA installation and account.
// The domain is the webmail root, e.g. https://webmail.example.com.
func WithCredentials(domain string, username string, password string) OutlookWebScraperOption {
	return func(scr *OutlookWebScraperImpl) error {
		scr.domain = domain
		scr.username = username
		scr.password = password
		return nil
	}
}

func WithBrowser(b base.Browser) OutlookWebScraperOption {
	return func(scr *OutlookWebScraperImpl) error {
		scr.browser = b
		return nil
	}
}

func WithCache(c *cache.Store) OutlookWebScraperOption {
	return func(scr *OutlookWebScraperImpl) error {
		scr.cache = c
		return nil
	}
}

// WithTimeout bounds each request of the default browser. It has no effect
// when a browser is injected with WithBrowser.
func WithTimeout(d time.Duration) OutlookWebScraperOption {
	return func(scr *OutlookWebScraperImpl) error {
		if d <= 0 {
			return errors.New("requires a positive timeout")
		}
		scr.timeout = d
		return nil
	}
}

func WithLogger(logger *slog.Logger) OutlookWebScraperOption {
	return func(scr *OutlookWebScraperImpl) error {
		scr.logger = logger
		return nil
	}
}

func WithCtx(ctx context.Context) OutlookWebScraperOption {
	return func(scr *OutlookWebScraperImpl) error {
		scr.ctx = ctx
		return nil
	}
}

// GetInbox lists the inbox.
func (srv *OutlookWebScraperImpl) GetInbox(refresh bool) ([]string, error) {
	return srv.GetFolder(base.InboxFolder, refresh)
}

// FlushCache empties both the folder and the message cache.
func (srv *OutlookWebScraperImpl) FlushCache() {
	srv.cache.Flush()
	srv.logger.Info("Cache flushed")
}

// CacheStats reports how many folder listings and message payloads are
// currently cached.
func (srv *OutlookWebScraperImpl) CacheStats() (folders int, messages int) {
	return srv.cache.Stats()
}
