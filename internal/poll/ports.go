package poll

// FolderScraper is the slice of the scraper surface the poll loop needs.
type FolderScraper interface {
	GetFolder(folderName string, refresh bool) ([]string, error)
	GetMessage(msgID string) ([]byte, error)
}
