package mock

import (
	"bytes"
	"fmt"
	"log/slog"
	url "net/url"
	"os"
	"strings"
	"testing"

	gomock "go.uber.org/mock/gomock"

	"github.com/mailscrape/weboutlook/pkg/base"
)

// setupLogger sets up a logger that only outputs if the test fails
func SetupLogger(t *testing.T) *slog.Logger {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Cleanup(func() {
		if t.Failed() {
			os.Stdout.Write(buf.Bytes()) //nolint:errcheck
		}
	})

	return logger
}

// LogonPage builds the page OWA serves before authentication: a logon form
// and nothing else worth scraping.
func LogonPage(pageURL string) *base.Response {
	return &base.Response{
		URL:       pageURL,
		Body:      []byte(`<html><body><form name="logonForm"></form></body></html>`),
		FormNames: []string{base.LoginFormName},
	}
}

// LandingPage builds the post-logon landing page, whose first link carries
// the mailbox base URL.
func LandingPage(pageURL string, baseHref string) *base.Response {
	return &base.Response{
		URL:  pageURL,
		Body: []byte("<html><body>Microsoft Outlook Web Access</body></html>"),
		Links: []base.Link{
			{Href: "inbox/", URL: baseHref + "inbox/", Text: "Inbox", BaseURL: baseHref},
		},
	}
}

// FailedLogonPage builds the page OWA serves for rejected credentials.
func FailedLogonPage(pageURL string) *base.Response {
	return &base.Response{
		URL:  pageURL,
		Body: []byte("<html><body>" + base.LoginFailedMarker + "</body></html>"),
	}
}

// ListingPage builds one page of a folder listing. Each id becomes a
// message link under baseHref. pager is the visible pager text, e.g.
// "1 of 1"; next, when non-empty, adds a Next Page link to that URL.
func ListingPage(pageURL string, baseHref string, ids []string, pager string, next string) *base.Response {
	links := make([]base.Link, 0, len(ids)+1)
	for _, id := range ids {
		links = append(links, base.Link{
			Href:    id,
			URL:     baseHref + id,
			Text:    id,
			BaseURL: baseHref,
		})
	}
	if next != "" {
		links = append(links, base.Link{Href: next, URL: next, Text: base.NextPageLinkText, BaseURL: baseHref})
	}

	body := fmt.Sprintf("<html><body>Page %s</body></html>", strings.ReplaceAll(pager, " ", "&nbsp;"))
	return &base.Response{
		URL:   pageURL,
		Body:  []byte(body),
		Links: links,
	}
}

// MessagePage wraps a raw message payload the way the browser returns it.
func MessagePage(pageURL string, payload []byte) *base.Response {
	return &base.Response{URL: pageURL, Body: payload}
}

// Matcher for a single field of a posted form, ignoring the rest.
type formFieldMatcher struct {
	field string
	value string
}

func (m formFieldMatcher) Matches(x interface{}) bool {
	form, ok := x.(url.Values)
	if !ok {
		return false
	}
	return form.Get(m.field) == m.value
}

func (m formFieldMatcher) String() string {
	return fmt.Sprintf("form field %s=%s", m.field, m.value)
}

// NewFormFieldMatcher returns a matcher asserting one field of a posted form.
func NewFormFieldMatcher(field, value string) gomock.Matcher {
	return formFieldMatcher{field: field, value: value}
}
