// Package testutil provides testing utilities and mocks shared across test
// files that drive the scraper through its interface.
package testutil

import (
	"os"

	"github.com/mailscrape/weboutlook/pkg/utils"
)

// MockScraper is a mock implementation of scraper.OutlookWebScraper.
// It allows injection of custom behavior through function fields and tracks
// calls for verification.
type MockScraper struct {
	LoginFunc         func() error
	GetInboxFunc      func(refresh bool) ([]string, error)
	GetFolderFunc     func(folderName string, refresh bool) ([]string, error)
	GetMessageFunc    func(msgID string) ([]byte, error)
	DeleteMessageFunc func(msgID string) ([]byte, error)

	LoginCalls   int
	FolderCalls  []string
	MessageCalls []string
	DeleteCalls  []string
	FlushCalls   int
}

// NewMockScraper creates a new MockScraper with default implementations.
func NewMockScraper() *MockScraper {
	return &MockScraper{}
}

func (m *MockScraper) Login() error {
	m.LoginCalls++
	if m.LoginFunc != nil {
		return m.LoginFunc()
	}
	return nil
}

func (m *MockScraper) GetInbox(refresh bool) ([]string, error) {
	if m.GetInboxFunc != nil {
		return m.GetInboxFunc(refresh)
	}
	return m.GetFolder("inbox", refresh)
}

func (m *MockScraper) GetFolder(folderName string, refresh bool) ([]string, error) {
	m.FolderCalls = append(m.FolderCalls, folderName)
	if m.GetFolderFunc != nil {
		return m.GetFolderFunc(folderName, refresh)
	}
	return []string{}, nil
}

func (m *MockScraper) GetMessage(msgID string) ([]byte, error) {
	m.MessageCalls = append(m.MessageCalls, msgID)
	if m.GetMessageFunc != nil {
		return m.GetMessageFunc(msgID)
	}
	return []byte{}, nil
}

func (m *MockScraper) DeleteMessage(msgID string) ([]byte, error) {
	m.DeleteCalls = append(m.DeleteCalls, msgID)
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(msgID)
	}
	return []byte{}, nil
}

func (m *MockScraper) FlushCache() {
	m.FlushCalls++
}

// Reset clears all tracked calls.
func (m *MockScraper) Reset() {
	m.LoginCalls = 0
	m.FolderCalls = nil
	m.MessageCalls = nil
	m.DeleteCalls = nil
	m.FlushCalls = 0
}

// MockFileManager provides a mock implementation of utils.FileManager for
// testing. It tracks all file operations and allows injection of custom
// behavior and errors.
type MockFileManager struct {
	WriteFileFunc func(filename string, data []byte, perm os.FileMode) error
	ReadFileFunc  func(filename string) ([]byte, error)
	CloseFunc     func() error
	CreateFunc    func(name string) (utils.Writer, error)
	MkdirAllFunc  func(path string, perm os.FileMode) error

	// Track calls for verification in tests
	WrittenFiles map[string][]byte
	WrittenPerms map[string]os.FileMode
	ReadFiles    []string
	CreatedDirs  map[string]os.FileMode
}

// NewMockFileManager creates a new MockFileManager with initialized tracking maps.
func NewMockFileManager() *MockFileManager {
	return &MockFileManager{
		WrittenFiles: make(map[string][]byte),
		WrittenPerms: make(map[string]os.FileMode),
		ReadFiles:    make([]string, 0),
		CreatedDirs:  make(map[string]os.FileMode),
	}
}

func (m *MockFileManager) WriteFile(filename string, data []byte, perm os.FileMode) error {
	m.WrittenFiles[filename] = data
	m.WrittenPerms[filename] = perm
	if m.WriteFileFunc != nil {
		return m.WriteFileFunc(filename, data, perm)
	}
	return nil
}

func (m *MockFileManager) ReadFile(filename string) ([]byte, error) {
	m.ReadFiles = append(m.ReadFiles, filename)
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(filename)
	}
	// Return data if it was previously written
	if data, exists := m.WrittenFiles[filename]; exists {
		return data, nil
	}
	return nil, nil
}

func (m *MockFileManager) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockFileManager) Create(name string) (utils.Writer, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(name)
	}
	return nil, nil
}

func (m *MockFileManager) MkdirAll(path string, perm os.FileMode) error {
	m.CreatedDirs[path] = perm
	if m.MkdirAllFunc != nil {
		return m.MkdirAllFunc(path, perm)
	}
	return nil
}

// Reset clears all tracked operations, useful for test cleanup.
func (m *MockFileManager) Reset() {
	m.WrittenFiles = make(map[string][]byte)
	m.WrittenPerms = make(map[string]os.FileMode)
	m.ReadFiles = make([]string, 0)
	m.CreatedDirs = make(map[string]os.FileMode)
}

// TestListingData provides common folder listings for reuse across test files.
var TestListingData = map[string][]string{
	"inbox":      {"inbox/welcome.EML", "inbox/status%20report.EML"},
	"sent items": {"sent%20items/reply.EML"},
	"drafts":     {},
}
