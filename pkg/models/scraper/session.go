package scraper

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/pkg/errors"

	"github.com/mailscrape/weboutlook/pkg/base"
	"github.com/mailscrape/weboutlook/pkg/utils"
)

// Login walks the OWA logon flow: prime basic auth for the exchange root,
// fetch it, fill in the logon form when one is served, then read the mailbox
// base URL off the landing page. Later operations log in on demand, so
// calling Login directly is only needed to verify credentials up front.
func (srv *OutlookWebScraperImpl) Login() error {
	root, err := srv.exchangeRoot()
	if err != nil {
		srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to resolve exchange root: %v", err), slog.Any("error", utils.WrapError(err)))
		return &RetrievalError{Op: "login", URL: srv.domain, Err: err}
	}

	srv.browser.SetCredentials(root, srv.username, srv.password)

	resp, err := srv.browser.Open(root)
	if err != nil {
		srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to open logon page: %v", err), slog.Any("error", utils.WrapError(err)))
		return &RetrievalError{Op: "login", URL: root, Err: err}
	}

	if resp.HasForm(base.LoginFormName) {
		resp, err = srv.browser.SubmitForm(base.LoginFormName, map[string]string{
			"username": srv.username,
			"password": srv.password,
		})
		if err != nil {
			srv.logger.ErrorContext(srv.ctx, fmt.Sprintf("Failed to submit logon form: %v", err), slog.Any("error", utils.WrapError(err)))
			return &RetrievalError{Op: "login", URL: root, Err: err}
		}
	}

	if bytes.Contains(resp.Body, []byte(base.LoginFailedMarker)) {
		return ErrInvalidLogin
	}

	baseHref := firstLinkBase(resp)
	if baseHref == "" {
		return &RetrievalError{Op: "login", URL: resp.URL, Err: errors.New("couldn't find <base href> on page after logging in")}
	}

	srv.baseHref = baseHref
	srv.loggedIn = true
	srv.logger.Info("Login success", slog.String("baseHref", baseHref))

	return nil
}

// ensureLoggedIn runs the logon flow at most once per session. A failed
// logon is not retried within the same call.
func (srv *OutlookWebScraperImpl) ensureLoggedIn() error {
	if srv.loggedIn {
		return nil
	}
	return srv.Login()
}

func (srv *OutlookWebScraperImpl) exchangeRoot() (string, error) {
	u, err := url.Parse(srv.domain)
	if err != nil {
		return "", err
	}
	return u.ResolveReference(&url.URL{Path: base.ExchangePath}).String(), nil
}

// firstLinkBase returns the base URL the landing page declares; OWA points
// it at the account's mailbox root. Empty when the page has no links or no
// <base href>.
func firstLinkBase(resp *base.Response) string {
	if len(resp.Links) == 0 {
		return ""
	}
	return resp.Links[0].BaseURL
}
