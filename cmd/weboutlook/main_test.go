package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v2"

	"github.com/mailscrape/weboutlook/internal/config"
	"github.com/mailscrape/weboutlook/pkg/base"
	"github.com/mailscrape/weboutlook/pkg/utils"
)

type MockOutlookScraper struct {
	GetFolderFunc     func(folderName string, refresh bool) ([]string, error)
	GetMessageFunc    func(msgID string) ([]byte, error)
	DeleteMessageFunc func(msgID string) ([]byte, error)

	FolderCalls []string
	DeleteCalls []string
}

func (m *MockOutlookScraper) Login() error { return nil }

func (m *MockOutlookScraper) GetInbox(refresh bool) ([]string, error) {
	return m.GetFolder(base.InboxFolder, refresh)
}

func (m *MockOutlookScraper) GetFolder(folderName string, refresh bool) ([]string, error) {
	m.FolderCalls = append(m.FolderCalls, folderName)
	if m.GetFolderFunc != nil {
		return m.GetFolderFunc(folderName, refresh)
	}
	return []string{}, nil
}

func (m *MockOutlookScraper) GetMessage(msgID string) ([]byte, error) {
	if m.GetMessageFunc != nil {
		return m.GetMessageFunc(msgID)
	}
	return []byte{}, nil
}

func (m *MockOutlookScraper) DeleteMessage(msgID string) ([]byte, error) {
	m.DeleteCalls = append(m.DeleteCalls, msgID)
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(msgID)
	}
	return []byte{}, nil
}

func (m *MockOutlookScraper) FlushCache() {}

// MockFileManager records writes instead of touching disk.
type MockFileManager struct {
	WrittenFiles map[string][]byte
	WrittenPerms map[string]os.FileMode
}

func (m *MockFileManager) Close() error { return nil }

func (m *MockFileManager) Create(name string) (utils.Writer, error) {
	return nil, errors.New("not implemented")
}

func (m *MockFileManager) MkdirAll(path string, perm os.FileMode) error { return nil }

func (m *MockFileManager) ReadFile(filename string) ([]byte, error) {
	data, ok := m.WrittenFiles[filename]
	if !ok {
		return nil, errors.New("file not found " + filename)
	}
	return data, nil
}

func (m *MockFileManager) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if m.WrittenFiles == nil {
		m.WrittenFiles = make(map[string][]byte)
	}
	if m.WrittenPerms == nil {
		m.WrittenPerms = make(map[string]os.FileMode)
	}
	m.WrittenFiles[filename] = data
	m.WrittenPerms[filename] = perm
	return nil
}

func testCliContext() *cli.Context {
	return cli.NewContext(cli.NewApp(), nil, nil)
}

func TestSnapshotFolderListingsBasic(t *testing.T) {
	ctx := context.Background()
	scr := &MockOutlookScraper{
		GetFolderFunc: func(folderName string, refresh bool) ([]string, error) {
			return []string{folderName + "/one.EML", folderName + "/two.EML"}, nil
		},
	}
	fileMgr := &MockFileManager{}

	err := snapshotFolderListings(ctx, scr, fileMgr, []string{"inbox", "sent items"}, false)(testCliContext())
	require.NoError(t, err)

	data, ok := fileMgr.WrittenFiles[base.FolderListFile]
	require.True(t, ok, "expected %s to be written", base.FolderListFile)
	assert.Equal(t, os.FileMode(0644), fileMgr.WrittenPerms[base.FolderListFile])

	var listings map[string]base.SerializedListing
	require.NoError(t, json.Unmarshal(data, &listings))
	require.Len(t, listings, 2)
	assert.Equal(t, []string{"inbox/one.EML", "inbox/two.EML"}, listings["inbox"].MessageIds)
	assert.Equal(t, "sent items", listings["sent items"].Name)
	assert.False(t, listings["sent items"].FetchedAt.IsZero())
	assert.Equal(t, []string{"inbox", "sent items"}, scr.FolderCalls)
}

func TestSnapshotFolderListingsTableDriven(t *testing.T) {
	tests := []struct {
		name      string
		folders   []string
		listings  map[string][]string
		folderErr error
		expectErr string
	}{
		{
			name:    "single folder",
			folders: []string{"inbox"},
			listings: map[string][]string{
				"inbox": {"inbox/Invoice%2034.EML"},
			},
		},
		{
			name:    "empty folder",
			folders: []string{"drafts"},
			listings: map[string][]string{
				"drafts": {},
			},
		},
		{
			name:      "listing failure",
			folders:   []string{"inbox"},
			folderErr: errors.New("boom"),
			expectErr: "listing folder error boom",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scr := &MockOutlookScraper{
				GetFolderFunc: func(folderName string, refresh bool) ([]string, error) {
					if tc.folderErr != nil {
						return nil, tc.folderErr
					}
					return tc.listings[folderName], nil
				},
			}
			fileMgr := &MockFileManager{}

			err := snapshotFolderListings(context.Background(), scr, fileMgr, tc.folders, true)(testCliContext())
			if tc.expectErr != "" {
				require.Error(t, err)
				assert.EqualError(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)

			var listings map[string]base.SerializedListing
			require.NoError(t, json.Unmarshal(fileMgr.WrittenFiles[base.FolderListFile], &listings))
			for _, folderName := range tc.folders {
				assert.Equal(t, tc.listings[folderName], listings[folderName].MessageIds)
			}
		})
	}
}

func TestListFolderPrintsIds(t *testing.T) {
	scr := &MockOutlookScraper{
		GetFolderFunc: func(folderName string, refresh bool) ([]string, error) {
			return []string{"inbox/a.EML", "inbox/b.EML"}, nil
		},
	}
	out := &bytes.Buffer{}

	require.NoError(t, listFolder(scr, out, "inbox", false))
	assert.Contains(t, out.String(), "inbox/a.EML\n")
	assert.Contains(t, out.String(), "inbox/b.EML\n")
	assert.Contains(t, out.String(), `2 messages in "inbox"`)
}

func TestCatMessageWritesRawBody(t *testing.T) {
	scr := &MockOutlookScraper{
		GetMessageFunc: func(msgID string) ([]byte, error) {
			return []byte("Subject: hi\r\n\r\nbody\r\n"), nil
		},
	}
	out := &bytes.Buffer{}

	require.NoError(t, catMessage(scr, out, "inbox/a.EML"))
	assert.Equal(t, "Subject: hi\r\n\r\nbody\r\n", out.String())
}

func TestRemoveMessage(t *testing.T) {
	scr := &MockOutlookScraper{}
	out := &bytes.Buffer{}

	require.NoError(t, removeMessage(scr, out, "inbox/a.EML"))
	assert.Equal(t, []string{"inbox/a.EML"}, scr.DeleteCalls)
	assert.Equal(t, "Deleted inbox/a.EML\n", out.String())
}

func TestRemoveMessageError(t *testing.T) {
	scr := &MockOutlookScraper{
		DeleteMessageFunc: func(msgID string) ([]byte, error) {
			return nil, errors.New("delete refused")
		},
	}
	out := &bytes.Buffer{}

	err := removeMessage(scr, out, "inbox/a.EML")
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestMergeFilter(t *testing.T) {
	assert.Nil(t, mergeFilter(nil, ""))

	merged := mergeFilter(nil, "Invoice")
	require.NotNil(t, merged)
	assert.Equal(t, []string{"Invoice"}, merged.IdRegex)

	existing := &config.MessageMatchers{IdRegex: []string{"report"}, BodyRegex: []string{"total"}}
	merged = mergeFilter(existing, "Invoice")
	assert.Equal(t, []string{"report", "Invoice"}, merged.IdRegex)
	assert.Equal(t, []string{"total"}, merged.BodyRegex)
	assert.Equal(t, []string{"report"}, existing.IdRegex, "source matchers must not be mutated")

	assert.Same(t, existing, mergeFilter(existing, "  "))
}

func TestFolderEntry(t *testing.T) {
	cfg := config.Config{
		Folders: []config.Folder{
			{Name: "Inbox", Export: true, Match: &config.MessageMatchers{IdRegex: []string{"Invoice"}}},
		},
	}

	entry := folderEntry(cfg, "inbox")
	assert.Equal(t, "Inbox", entry.Name)
	require.NotNil(t, entry.Match)
	assert.Equal(t, []string{"Invoice"}, entry.Match.IdRegex)

	entry = folderEntry(cfg, "sent items")
	assert.Equal(t, "sent items", entry.Name)
	assert.Nil(t, entry.Match)
}

func TestConfigPathPrefersFlagThenEnv(t *testing.T) {
	set := flag.NewFlagSet("test", 0)
	set.String("config", "", "")
	c := cli.NewContext(cli.NewApp(), set, nil)

	t.Setenv(configEnvVar, "/tmp/from-env.yml")
	assert.Equal(t, "/tmp/from-env.yml", configPath(c))

	require.NoError(t, set.Set("config", "/tmp/from-flag.yml"))
	assert.Equal(t, "/tmp/from-flag.yml", configPath(c))
}

func TestSimple(t *testing.T) {
	assert.Equal(t, 1, 1, "they should be equal")
}
