package base

import (
	"net/url"
	"time"
)

const (
	// FolderListFile is where the snapshot command writes its folder listings.
	FolderListFile = "folderlist.json"

	UPTRACE_SERVICE     = "weboutlook"
	UPTRACE_DSN_ENV_VAR = "UPTRACE_DSN"
)

// Markers and well-known values of the Outlook Web Access HTML surface.
const (
	ExchangePath      = "exchange/"
	LoginFormName     = "logonForm"
	LoginFailedMarker = "You could not be logged on to Outlook Web Access"
	SinglePageMarker  = "&nbsp;of&nbsp;1"
	NextPageLinkText  = "Next Page"
	MessageLinkMarker = ".EML"
	InboxFolder       = "inbox"
)

// SerializedListing is the snapshot form of a folder listing.
type SerializedListing struct {
	Name       string    `json:"name"`
	MessageIds []string  `json:"messageIds"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// Link is one hyperlink lifted off a fetched page.
type Link struct {
	Href    string // raw href attribute
	URL     string // absolute, resolved against the page base
	Text    string
	BaseURL string // resolved <base href> of the page, empty when the tag is absent
}

// Response is the inert result of a single browser operation.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Links      []Link
	FormNames  []string
}

// HasForm reports whether the fetched page carries a form with the given name.
func (r *Response) HasForm(name string) bool {
	for _, n := range r.FormNames {
		if n == name {
			return true
		}
	}
	return false
}

// Browser is an interface to abstract the stateful web session the scraper
// drives. Open and SubmitForm update the browser's notion of the current
// page; headers added with AddHeader ride along on every later request.
type Browser interface {
	SetCredentials(prefix string, username string, password string)
	AddHeader(name string, value string)
	Open(pageURL string) (*Response, error)
	SubmitForm(name string, fields map[string]string) (*Response, error)
	Post(pageURL string, form url.Values) (*Response, error)
}
