// Package archive exports a kid's full points ledger as JSON Lines to
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/kidpoints/internal/model"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("ledger export not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LedgerSource yields a kid's ledger oldest first.
type LedgerSource interface {
	Entries(ctx context.Context, kidID int64) ([]model.LedgerEntry, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Export describes one uploaded ledger snapshot.
type Export struct {
	Key     string    `json:"key"`
	KidID   int64     `json:"kid_id"`
	Entries int       `json:"entries"`
	Balance int       `json:"balance"`
	Bytes   int64     `json:"bytes"`
	At      time.Time `json:"exported_at"`
}

type Exporter struct {
	client s3Client
	bucket string
	prefix string
	source LedgerSource
	now    func() time.Time
	logger *slog.Logger
}

// NewExporter returns an exporter; with an empty bucket every Export call
// fails with ErrDisabled.
func NewExporter(cfg S3Config, source LedgerSource, logger *slog.Logger) *Exporter {
	e := &Exporter{
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		source: source,
		now:    time.Now,
		logger: logger,
	}
	if cfg.Bucket != "" {
		e.client = newS3Client(cfg)
	}
	return e
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: true,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (e *Exporter) Enabled() bool {
	return e.client != nil
}

// Key builds the object key for a snapshot taken at t.
func (e *Exporter) Key(familyID, kidID int64, t time.Time) string {
	name := fmt.Sprintf("ledger-%s.jsonl", t.UTC().Format("2006-01-02T150405Z"))
	return path.Join(e.prefix, fmt.Sprintf("family-%d", familyID), fmt.Sprintf("kid-%d", kidID), name)
}

// Export uploads every ledger entry of the kid, one JSON object per line.
func (e *Exporter) Export(ctx context.Context, familyID, kidID int64) (*Export, error) {
	if e.client == nil {
		return nil, ErrDisabled
	}

	entries, err := e.source.Entries(ctx, kidID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	body, balance, err := encodeJSONL(entries)
	if err != nil {
		return nil, err
	}

	at := e.now().UTC()
	key := e.Key(familyID, kidID, at)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/x-ndjson"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	e.logger.Info("ledger exported", "family_id", familyID, "kid_id", kidID, "key", key, "entries", len(entries))
	return &Export{
		Key:     key,
		KidID:   kidID,
		Entries: len(entries),
		Balance: balance,
		Bytes:   int64(len(body)),
		At:      at,
	}, nil
}

// Fetch downloads a snapshot and decodes its entries.
func (e *Exporter) Fetch(ctx context.Context, key string) ([]model.LedgerEntry, error) {
	if e.client == nil {
		return nil, ErrDisabled
	}
	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()
	return decodeJSONL(out.Body)
}

func encodeJSONL(entries []model.LedgerEntry) ([]byte, int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	balance := 0
	for _, en := range entries {
		if err := enc.Encode(en); err != nil {
			return nil, 0, fmt.Errorf("encode entry %d: %w", en.ID, err)
		}
		balance += en.Signed()
	}
	return buf.Bytes(), balance, nil
}

func decodeJSONL(r io.Reader) ([]model.LedgerEntry, error) {
	dec := json.NewDecoder(r)
	entries := []model.LedgerEntry{}
	for {
		var en model.LedgerEntry
		err := dec.Decode(&en)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		entries = append(entries, en)
	}
}
