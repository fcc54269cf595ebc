package export

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mailscrape/weboutlook/internal/config"
	"github.com/mailscrape/weboutlook/internal/matchers"
	"github.com/mailscrape/weboutlook/pkg/models/scraper"
	"github.com/mailscrape/weboutlook/pkg/utils"
)

const messageFileName = "message.eml"

// Exporter walks a folder listing and writes each scraped message to the
// file manager as a raw .eml plus a metadata.json with the parsed headers.
type Exporter struct {
	scraper     scraper.OutlookWebScraper
	fileManager utils.FileManager
	baseFolder  string
	logger      *slog.Logger
	ctx         context.Context
}

type ExporterOption func(*Exporter) error

// ExportedMessageMetadata is the sidecar written next to each message body.
type ExportedMessageMetadata struct {
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	CC         string    `json:"cc"`
	Timestamp  time.Time `json:"timestamp"`
	MessageId  string    `json:"messageId"`
	FolderName string    `json:"folderName"`
	SourceId   string    `json:"sourceId"`
	BatchId    string    `json:"batchId"`
}

// Result summarizes one export run. It is also serialized as the batch
// manifest.
type Result struct {
	BatchId  string    `json:"batchId"`
	Folder   string    `json:"folder"`
	Started  time.Time `json:"started"`
	Exported []string  `json:"exported"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

func NewExporter(opts ...ExporterOption) (*Exporter, error) {
	var e Exporter
	for _, opt := range opts {
		err := opt(&e)
		if err != nil {
			return nil, err
		}
	}

	if e.scraper == nil {
		return nil, errors.New("requires scraper")
	}

	if e.fileManager == nil {
		return nil, errors.New("requires file manager")
	}

	if e.logger == nil {
		return nil, errors.New("requires slogger")
	}

	if e.baseFolder == "" {
		e.baseFolder = "exports"
	}

	if e.ctx == nil {
		e.ctx = context.Background()
	}

	return &e, nil
}

func WithScraper(s scraper.OutlookWebScraper) ExporterOption {
	return func(e *Exporter) error {
		e.scraper = s
		return nil
	}
}

func WithFileManager(fm utils.FileManager) ExporterOption {
	return func(e *Exporter) error {
		e.fileManager = fm
		return nil
	}
}

func WithBaseFolder(baseFolder string) ExporterOption {
	return func(e *Exporter) error {
		e.baseFolder = baseFolder
		return nil
	}
}

func WithLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) error {
		e.logger = logger
		return nil
	}
}

func WithCtx(ctx context.Context) ExporterOption {
	return func(e *Exporter) error {
		e.ctx = ctx
		return nil
	}
}

// ExportFolder scrapes every message in folderName that passes match and
// writes it out. Per-message failures are logged and counted rather than
// aborting the batch.
func (e *Exporter) ExportFolder(folderName string, match *config.MessageMatchers, refresh bool) (Result, error) {
	result := Result{
		BatchId: uuid.NewString(),
		Folder:  folderName,
		Started: time.Now().UTC(),
	}

	ids, err := e.scraper.GetFolder(folderName, refresh)
	if err != nil {
		return result, err
	}

	basePath := filepath.Join(e.baseFolder, sanitize(folderName))

	for _, id := range ids {
		body, err := e.scraper.GetMessage(id)
		if err != nil {
			e.logger.ErrorContext(e.ctx, fmt.Sprintf("Failed to fetch %s", id), slog.Any("error", utils.WrapError(err)))
			result.Failed++
			continue
		}

		ok, err := matchers.Matches(match, matchers.Message{Id: id, Body: body})
		if err != nil {
			return result, err
		}
		if !ok {
			result.Skipped++
			continue
		}

		if err := e.writeMessage(basePath, folderName, id, body, result.BatchId); err != nil {
			e.logger.ErrorContext(e.ctx, fmt.Sprintf("Failed to export %s", id), slog.Any("error", utils.WrapError(err)))
			result.Failed++
			continue
		}
		result.Exported = append(result.Exported, id)
	}

	if err := e.writeManifest(basePath, result); err != nil {
		return result, err
	}

	e.logger.InfoContext(e.ctx, fmt.Sprintf("Exported folder %s", folderName),
		slog.String("batchId", result.BatchId),
		slog.Int("exported", len(result.Exported)),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}

func (e *Exporter) writeMessage(basePath, folderName, id string, body []byte, batchId string) error {
	metadata := e.parseMetadata(folderName, id, body, batchId)

	name := metadata.Subject
	if name == "" {
		name = messageBaseName(id)
	}
	messageFolderName := fmt.Sprintf("%s-%s-%x",
		metadata.Timestamp.Format("20060102T150405Z"),
		sanitize(name),
		md5.Sum([]byte(id)),
	)
	messageFolderPath := filepath.Join(basePath, messageFolderName)
	if err := e.fileManager.MkdirAll(messageFolderPath, os.ModePerm); err != nil {
		return err
	}

	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	metadataFile := filepath.Join(messageFolderPath, "metadata.json")
	if err := e.fileManager.WriteFile(metadataFile, metadataBytes, os.ModePerm); err != nil {
		return err
	}

	bodyFile := filepath.Join(messageFolderPath, messageFileName)
	writer, err := e.fileManager.Create(bodyFile)
	if err != nil {
		return err
	}
	if _, err := writer.Write(body); err != nil {
		return err
	}
	return writer.Flush()
}

// parseMetadata pulls headers out of the raw message source. Scraped payloads
// are not guaranteed to be well formed, so parse failures degrade to a
// metadata record carrying only the scrape identifiers.
func (e *Exporter) parseMetadata(folderName, id string, body []byte, batchId string) ExportedMessageMetadata {
	metadata := ExportedMessageMetadata{
		Timestamp:  time.Now().UTC(),
		FolderName: folderName,
		SourceId:   id,
		BatchId:    batchId,
	}

	entity, err := message.Read(bytes.NewReader(body))
	if err != nil && !message.IsUnknownCharset(err) {
		e.logger.WarnContext(e.ctx, fmt.Sprintf("Could not parse headers of %s", id), slog.Any("error", err))
		return metadata
	}

	header := mail.Header{Header: entity.Header}
	if subject, err := header.Subject(); err == nil {
		metadata.Subject = subject
	}
	metadata.From = formatAddresses(header, "From")
	metadata.To = formatAddresses(header, "To")
	metadata.CC = formatAddresses(header, "Cc")
	if date, err := header.Date(); err == nil && !date.IsZero() {
		metadata.Timestamp = date.UTC()
	}
	metadata.MessageId = entity.Header.Get("Message-Id")

	return metadata
}

func (e *Exporter) writeManifest(basePath string, result Result) error {
	manifestBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	manifestFile := filepath.Join(basePath, fmt.Sprintf("batch-%s.json", result.BatchId))
	return e.fileManager.WriteFile(manifestFile, manifestBytes, os.ModePerm)
}

func formatAddresses(header mail.Header, field string) string {
	addresses, err := header.AddressList(field)
	if err != nil || len(addresses) == 0 {
		return ""
	}
	formatted := ""
	for i, address := range addresses {
		if i > 0 {
			formatted += ", "
		}
		formatted += address.Address
	}
	return formatted
}

func sanitize(input string) string {
	illegalCharsRe := regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	return illegalCharsRe.ReplaceAllString(input, "_")
}

// messageBaseName recovers a readable name from a message id for payloads
// with no usable Subject. Ids are url-escaped path fragments like
// "Inbox/Invoice%2034.EML".
func messageBaseName(id string) string {
	decoded, err := url.PathUnescape(id)
	if err != nil {
		decoded = id
	}
	base := path.Base(decoded)
	return strings.TrimSuffix(base, path.Ext(base))
}
