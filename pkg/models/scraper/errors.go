package scraper

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidLogin is returned when OWA rejects the supplied credentials.
var ErrInvalidLogin = errors.New("could not be logged on to Outlook Web Access")

// RetrievalError reports a page that could not be fetched or did not carry
// the structure the scraper depends on.
type RetrievalError struct {
	Op  string
	URL string
	Err error
}

func (e *RetrievalError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.URL)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
