package export

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailscrape/weboutlook/internal/config"
	"github.com/mailscrape/weboutlook/pkg/mock"
	"github.com/mailscrape/weboutlook/pkg/testutil"
)

const invoicePayload = "From: billing@example.com\r\n" +
	"To: jdoe@example.com\r\n" +
	"Subject: Invoice 34\r\n" +
	"Date: Tue, 10 Feb 2004 15:04:05 +0000\r\n" +
	"Message-Id: <invoice-34@example.com>\r\n" +
	"\r\n" +
	"Please find the invoice attached.\r\n"

const welcomePayload = "From: list@example.com\r\n" +
	"Subject: Welcome\r\n" +
	"Date: Wed, 11 Feb 2004 09:00:00 +0000\r\n" +
	"\r\n" +
	"Welcome to the list.\r\n"

func newTestExporter(t *testing.T, ms *testutil.MockScraper, fm *mock.MockFileWriter) *Exporter {
	t.Helper()
	e, err := NewExporter(
		WithScraper(ms),
		WithFileManager(fm),
		WithBaseFolder("exports"),
		WithLogger(mock.SetupLogger(t)),
	)
	require.NoError(t, err)
	return e
}

func TestNewExporterValidations(t *testing.T) {
	ms := testutil.NewMockScraper()
	fm := mock.NewMockFileWriter()
	logger := mock.SetupLogger(t)

	t.Run("Missing Scraper", func(t *testing.T) {
		_, err := NewExporter(WithFileManager(fm), WithLogger(logger))
		assert.ErrorContains(t, err, "requires scraper")
	})

	t.Run("Missing File Manager", func(t *testing.T) {
		_, err := NewExporter(WithScraper(ms), WithLogger(logger))
		assert.ErrorContains(t, err, "requires file manager")
	})

	t.Run("Missing Logger", func(t *testing.T) {
		_, err := NewExporter(WithScraper(ms), WithFileManager(fm))
		assert.ErrorContains(t, err, "requires slogger")
	})

	t.Run("Defaults", func(t *testing.T) {
		e, err := NewExporter(WithScraper(ms), WithFileManager(fm), WithLogger(logger))
		require.NoError(t, err)
		assert.Equal(t, "exports", e.baseFolder)
		assert.NotNil(t, e.ctx)
	})
}

func TestExportFolderWritesMessagesAndManifest(t *testing.T) {
	ms := testutil.NewMockScraper()
	ms.GetFolderFunc = func(folderName string, refresh bool) ([]string, error) {
		return []string{"inbox/Invoice.EML", "inbox/Welcome.EML"}, nil
	}
	ms.GetMessageFunc = func(msgID string) ([]byte, error) {
		if msgID == "inbox/Invoice.EML" {
			return []byte(invoicePayload), nil
		}
		return []byte(welcomePayload), nil
	}
	fm := mock.NewMockFileWriter()
	e := newTestExporter(t, ms, fm)

	result, err := e.ExportFolder("inbox", nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"inbox/Invoice.EML", "inbox/Welcome.EML"}, result.Exported)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)
	_, err = uuid.Parse(result.BatchId)
	assert.NoError(t, err, "batch id should be a UUID")

	invoiceDir := fmt.Sprintf("exports/inbox/20040210T150405Z-Invoice_34-%x", md5.Sum([]byte("inbox/Invoice.EML")))
	assert.Contains(t, fm.Mkdirs, invoiceDir)

	body, err := fm.ReadFile(invoiceDir + "/message.eml")
	require.NoError(t, err)
	assert.Equal(t, invoicePayload, string(body))

	metadataBytes, err := fm.ReadFile(invoiceDir + "/metadata.json")
	require.NoError(t, err)
	var metadata ExportedMessageMetadata
	require.NoError(t, json.Unmarshal(metadataBytes, &metadata))
	assert.Equal(t, "Invoice 34", metadata.Subject)
	assert.Equal(t, "billing@example.com", metadata.From)
	assert.Equal(t, "jdoe@example.com", metadata.To)
	assert.Equal(t, "<invoice-34@example.com>", metadata.MessageId)
	assert.Equal(t, "inbox/Invoice.EML", metadata.SourceId)
	assert.Equal(t, result.BatchId, metadata.BatchId)

	manifestBytes, err := fm.ReadFile(fmt.Sprintf("exports/inbox/batch-%s.json", result.BatchId))
	require.NoError(t, err)
	var manifest Result
	require.NoError(t, json.Unmarshal(manifestBytes, &manifest))
	assert.Equal(t, result.Exported, manifest.Exported)
}

func TestExportFolderAppliesMatchers(t *testing.T) {
	ms := testutil.NewMockScraper()
	ms.GetFolderFunc = func(folderName string, refresh bool) ([]string, error) {
		return []string{"inbox/Invoice.EML", "inbox/Welcome.EML"}, nil
	}
	ms.GetMessageFunc = func(msgID string) ([]byte, error) {
		if msgID == "inbox/Invoice.EML" {
			return []byte(invoicePayload), nil
		}
		return []byte(welcomePayload), nil
	}
	fm := mock.NewMockFileWriter()
	e := newTestExporter(t, ms, fm)

	match := &config.MessageMatchers{IdRegex: []string{`Invoice`}}
	result, err := e.ExportFolder("inbox", match, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"inbox/Invoice.EML"}, result.Exported)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Failed)
}

func TestExportFolderContinuesPastFetchFailures(t *testing.T) {
	ms := testutil.NewMockScraper()
	ms.GetFolderFunc = func(folderName string, refresh bool) ([]string, error) {
		return []string{"inbox/Broken.EML", "inbox/Welcome.EML"}, nil
	}
	ms.GetMessageFunc = func(msgID string) ([]byte, error) {
		if msgID == "inbox/Broken.EML" {
			return nil, fmt.Errorf("boom")
		}
		return []byte(welcomePayload), nil
	}
	fm := mock.NewMockFileWriter()
	e := newTestExporter(t, ms, fm)

	result, err := e.ExportFolder("inbox", nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"inbox/Welcome.EML"}, result.Exported)
	assert.Equal(t, 1, result.Failed)
}

func TestExportFolderListingFailure(t *testing.T) {
	ms := testutil.NewMockScraper()
	ms.GetFolderFunc = func(folderName string, refresh bool) ([]string, error) {
		return nil, fmt.Errorf("listing failed")
	}
	fm := mock.NewMockFileWriter()
	e := newTestExporter(t, ms, fm)

	_, err := e.ExportFolder("inbox", nil, false)
	assert.ErrorContains(t, err, "listing failed")
	assert.Empty(t, fm.Writers)
}

func TestExportFolderUnparsablePayload(t *testing.T) {
	ms := testutil.NewMockScraper()
	ms.GetFolderFunc = func(folderName string, refresh bool) ([]string, error) {
		return []string{"inbox/Garbled.EML"}, nil
	}
	ms.GetMessageFunc = func(msgID string) ([]byte, error) {
		return []byte("this is not a mail message"), nil
	}
	fm := mock.NewMockFileWriter()
	e := newTestExporter(t, ms, fm)

	result, err := e.ExportFolder("inbox", nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"inbox/Garbled.EML"}, result.Exported)

	var metadataFile string
	for name := range fm.Writers {
		if strings.HasSuffix(name, "/metadata.json") {
			metadataFile = name
			break
		}
	}
	require.NotEmpty(t, metadataFile, "metadata.json should still be written")
	assert.Contains(t, metadataFile, "-Garbled-", "folder name falls back to the message id")

	metadataBytes, err := fm.ReadFile(metadataFile)
	require.NoError(t, err)
	var metadata ExportedMessageMetadata
	require.NoError(t, json.Unmarshal(metadataBytes, &metadata))
	assert.Empty(t, metadata.Subject)
	assert.Equal(t, "inbox/Garbled.EML", metadata.SourceId)
	assert.False(t, metadata.Timestamp.IsZero())
}

func TestExportFolderDecodesIdForFallbackName(t *testing.T) {
	ms := testutil.NewMockScraper()
	ms.GetFolderFunc = func(folderName string, refresh bool) ([]string, error) {
		return []string{"inbox/Status%20Report.EML"}, nil
	}
	ms.GetMessageFunc = func(msgID string) ([]byte, error) {
		return []byte("From: list@example.com\r\n\r\nno subject on this one\r\n"), nil
	}
	fm := mock.NewMockFileWriter()
	e := newTestExporter(t, ms, fm)

	result, err := e.ExportFolder("inbox", nil, false)
	require.NoError(t, err)
	require.Len(t, result.Exported, 1)

	found := false
	for dir := range fm.Mkdirs {
		if strings.Contains(dir, "-Status_Report-") {
			found = true
			break
		}
	}
	assert.True(t, found, "directory name should use the url-decoded id")
}
