package scraper

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/mailscrape/weboutlook/pkg/base"
	"github.com/mailscrape/weboutlook/pkg/utils"
)

// GetFolder returns the ids of every message in a folder, read or not. The
// folder name is case insensitive. Unless refresh is set, a previously
// cached listing is returned as is, including a cached empty one.
//
// OWA paginates listings and serves the last page again for any page past
// the end, so the walk stops as soon as a page repeats the previous one.
// The repeated page is not appended. A listing is only cached once every
// page fetch succeeded.
func (srv *OutlookWebScraperImpl) GetFolder(folderName string, refresh bool) ([]string, error) {
	if !refresh {
		if ids, ok := srv.cache.LookupFolder(folderName); ok {
			srv.logger.Debug("Folder listing served from cache", slog.String("folder", folderName))
			return ids, nil
		}
	}

	if err := srv.ensureLoggedIn(); err != nil {
		return nil, err
	}

	listURL := srv.baseHref + escapeFolder(folderName) + "/?Cmd=contents"
	resp, err := srv.browser.Open(listURL)
	if err != nil {
		srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to open folder listing: %v", err), slog.Any("error", utils.WrapError(err)))
		return nil, &RetrievalError{Op: "list folder", URL: listURL, Err: err}
	}

	ids := srv.messageIds(resp)

	if !bytes.Contains(resp.Body, []byte(base.SinglePageMarker)) {
		previous := ids
		for {
			next, ok := linkByText(resp, base.NextPageLinkText)
			if !ok {
				return nil, &RetrievalError{
					Op:  "list folder",
					URL: resp.URL,
					Err: errors.Errorf("no %q link on a multi-page listing", base.NextPageLinkText),
				}
			}

			resp, err = srv.browser.Open(next)
			if err != nil {
				srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to open listing page: %v", err), slog.Any("error", utils.WrapError(err)))
				return nil, &RetrievalError{Op: "list folder", URL: next, Err: err}
			}

			page := srv.messageIds(resp)
			if equalIds(page, previous) {
				// Pagination wrapped onto the last page again.
				break
			}
			ids = append(ids, page...)
			previous = page
		}
	}

	ids = dedupe(ids)
	srv.cache.StoreFolder(folderName, ids)
	srv.logger.Info(fmt.Sprintf("Listed folder %s", folderName), slog.Int("messages", len(ids)))

	return ids, nil
}

// messageIds extracts the ids off a listing page: every link targeting a
// message file, normalized by stripping the session's base URL.
func (srv *OutlookWebScraperImpl) messageIds(resp *base.Response) []string {
	var ids []string
	for _, link := range resp.Links {
		if !strings.Contains(link.URL, base.MessageLinkMarker) {
			continue
		}
		ids = append(ids, strings.TrimPrefix(link.URL, srv.baseHref))
	}
	return ids
}

func escapeFolder(folderName string) string {
	return (&url.URL{Path: folderName}).EscapedPath()
}

func linkByText(resp *base.Response, text string) (string, bool) {
	for _, link := range resp.Links {
		if strings.Contains(link.Text, text) {
			return link.URL, true
		}
	}
	return "", false
}

func equalIds(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedupe(ids []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
