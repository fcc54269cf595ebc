package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mailscrape/weboutlook/pkg/utils"
)

// GetMessage returns the raw source of a single message, headers included.
func (srv *OutlookWebScraperImpl) GetMessage(msgID string) ([]byte, error) {
	if payload, ok := srv.cache.LookupMessage(msgID); ok {
		srv.logger.Debug("Message served from cache", slog.String("id", msgID))
		return payload, nil
	}

	if err := srv.ensureLoggedIn(); err != nil {
		return nil, err
	}

	// The Translate: f header makes IIS return the message source rather
	// than a rendered view.
	srv.browser.AddHeader("Translate", "f")

	msgURL := srv.baseHref + msgID + "?Cmd=body"
	resp, err := srv.browser.Open(msgURL)
	if err != nil {
		srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to fetch message: %v", err), slog.Any("error", utils.WrapError(err)))
		return nil, &RetrievalError{Op: "get message", URL: msgURL, Err: err}
	}

	srv.cache.StoreMessage(msgID, resp.Body)

	return resp.Body, nil
}

// DeleteMessage deletes a message server-side and returns the confirmation
// page. The cached payload and every cached listing referencing the id are
// invalidated.
func (srv *OutlookWebScraperImpl) DeleteMessage(msgID string) ([]byte, error) {
	if err := srv.ensureLoggedIn(); err != nil {
		return nil, err
	}

	msgID = strings.TrimSuffix(msgID, "?Cmd=open")

	form := url.Values{}
	form.Set("MsgId", msgID)
	form.Set("Cmd", "delete")
	form.Set("ReadForm", "1")

	msgURL := srv.baseHref + msgID
	resp, err := srv.browser.Post(msgURL, form)
	if err != nil {
		srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to delete message: %v", err), slog.Any("error", utils.WrapError(err)))
		return nil, &RetrievalError{Op: "delete message", URL: msgURL, Err: err}
	}

	srv.cache.InvalidateMessage(msgID)
	srv.logger.Info("Deleted message", slog.String("id", msgID))

	return resp.Body, nil
}
