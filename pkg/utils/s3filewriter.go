package utils

import (
	"bytes"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3FileManager is a FileManager backed by an S3-compatible bucket. File
// paths become object keys, so MkdirAll is a no-op.
type S3FileManager struct {
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string

	open *s3Writer
}

func NewS3FileManager(endpoint, region, bucket, key, secret string) (*S3FileManager, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		Credentials:      credentials.NewStaticCredentials(key, secret, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	return &S3FileManager{
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		bucket:     bucket,
	}, nil
}

func (s *S3FileManager) Create(name string) (Writer, error) {
	s.open = &s3Writer{mgr: s, key: keyFor(name)}
	return s.open, nil
}

func (s *S3FileManager) Close() error {
	if s.open == nil {
		return nil
	}
	err := s.open.Flush()
	s.open = nil
	return err
}

func (s *S3FileManager) MkdirAll(path string, perm os.FileMode) error {
	return nil
}

func (s *S3FileManager) ReadFile(filename string) ([]byte, error) {
	buf := aws.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.Download(buf, &s3manager.DownloadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(keyFor(filename)),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *S3FileManager) WriteFile(filename string, data []byte, perm os.FileMode) error {
	_, err := s.uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(keyFor(filename)),
		Body:   bytes.NewReader(data),
	})
	return err
}

func keyFor(name string) string {
	return strings.TrimPrefix(name, "/")
}

// s3Writer buffers writes in memory and uploads the object on Flush.
type s3Writer struct {
	mgr *S3FileManager
	key string
	buf bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3Writer) Flush() error {
	return w.mgr.WriteFile(w.key, w.buf.Bytes(), 0644)
}
