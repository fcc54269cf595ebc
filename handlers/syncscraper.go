package handlers

import (
	"sync"

	"github.com/mailscrape/weboutlook/pkg/models/scraper"
)

// SyncScraper serializes access to a scraper. The scraper drives a single
// browser session with one sticky header set, so concurrent fiber handlers
// must take turns.
type SyncScraper struct {
	mu      sync.Mutex
	scraper scraper.OutlookWebScraper
}

func NewSyncScraper(s scraper.OutlookWebScraper) *SyncScraper {
	return &SyncScraper{scraper: s}
}

func (ss *SyncScraper) Login() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.scraper.Login()
}

func (ss *SyncScraper) GetInbox(refresh bool) ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.scraper.GetInbox(refresh)
}

func (ss *SyncScraper) GetFolder(folderName string, refresh bool) ([]string, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.scraper.GetFolder(folderName, refresh)
}

func (ss *SyncScraper) GetMessage(msgID string) ([]byte, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.scraper.GetMessage(msgID)
}

func (ss *SyncScraper) DeleteMessage(msgID string) ([]byte, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.scraper.DeleteMessage(msgID)
}

func (ss *SyncScraper) FlushCache() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.scraper.FlushCache()
}
