// Package browser implements the stateful web session the scraper drives:
// cookies, sticky headers, URL-scoped basic auth and form submission against
// the last fetched page.
package browser

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mailscrape/weboutlook/pkg/base"
)

// DefaultTimeout is the socket timeout applied to every request.
const DefaultTimeout = 15 * time.Second

// Session is a minimal scripted browser. It is not safe for concurrent use;
// SubmitForm operates on whatever page was fetched last.
type Session struct {
	client  *http.Client
	headers map[string]string

	authPrefix   string
	authUsername string
	authPassword string

	page *page
}

type Option func(*Session) error

// WithTimeout overrides the default socket timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d <= 0 {
			return errors.New("requires a positive timeout")
		}
		s.client.Timeout = d
		return nil
	}
}

// WithHTTPClient swaps in a caller-supplied HTTP client. The client should
// carry a cookie jar, OWA logins do not survive without one.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) error {
		if c == nil {
			return errors.New("requires a non-nil http client")
		}
		s.client = c
		return nil
	}
}

func New(opts ...Option) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	s := &Session{
		client: &http.Client{
			Jar:     jar,
			Timeout: DefaultTimeout,
		},
		headers: make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SetCredentials registers basic auth credentials for every request whose
// URL starts with prefix.
func (s *Session) SetCredentials(prefix string, username string, password string) {
	s.authPrefix = prefix
	s.authUsername = username
	s.authPassword = password
}

// AddHeader attaches a header to every subsequent request.
func (s *Session) AddHeader(name string, value string) {
	s.headers[name] = value
}

// Open fetches a page with GET and makes it the current page.
func (s *Session) Open(pageURL string) (*base.Response, error) {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", pageURL)
	}
	return s.do(req)
}

// Post sends a form-encoded POST and makes the result the current page.
func (s *Session) Post(pageURL string, form url.Values) (*base.Response, error) {
	req, err := http.NewRequest(http.MethodPost, pageURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", pageURL)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

// SubmitForm fills the named form on the current page and submits it.
// Fields not mentioned keep the values the page shipped with.
func (s *Session) SubmitForm(name string, fields map[string]string) (*base.Response, error) {
	if s.page == nil {
		return nil, errors.New("no current page to submit a form from")
	}

	form := s.page.form(name)
	if form == nil {
		return nil, errors.Errorf("no form named %q on %s", name, s.page.url)
	}

	values := url.Values{}
	for k, vs := range form.fields {
		values[k] = append([]string(nil), vs...)
	}
	for k, v := range fields {
		values.Set(k, v)
	}

	action := s.page.resolve(form.action)
	if form.method == http.MethodGet {
		target, err := url.Parse(action)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving form action %q", form.action)
		}
		target.RawQuery = values.Encode()
		return s.Open(target.String())
	}
	return s.Post(action, values)
}

func (s *Session) do(req *http.Request) (*base.Response, error) {
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.authPrefix != "" && strings.HasPrefix(req.URL.String(), s.authPrefix) {
		req.SetBasicAuth(s.authUsername, s.authPassword)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", req.URL)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("%s returned %s", req.URL, resp.Status)
	}

	p, err := parsePage(resp.Request.URL, body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", req.URL)
	}
	s.page = p

	return &base.Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		Links:      p.links(),
		FormNames:  p.formNames(),
	}, nil
}
