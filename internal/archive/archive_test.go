package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/kidpoints/internal/model"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	if input.ContentType != nil {
		m.types[*input.Key] = *input.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type staticLedger struct {
	entries []model.LedgerEntry
	err     error
}

func (s staticLedger) Entries(_ context.Context, _ int64) ([]model.LedgerEntry, error) {
	return s.entries, s.err
}

func newTestExporter(src LedgerSource) (*Exporter, *mockS3Client) {
	mock := newMockS3()
	e := NewExporter(S3Config{Prefix: "exports"}, src, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.client = mock
	e.bucket = "kidpoints"
	e.now = func() time.Time { return time.Date(2026, 10, 15, 18, 30, 5, 0, time.UTC) }
	return e, mock
}

func TestExportDisabledWithoutBucket(t *testing.T) {
	e := NewExporter(S3Config{}, staticLedger{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if e.Enabled() {
		t.Fatal("exporter without bucket should be disabled")
	}
	if _, err := e.Export(context.Background(), 1, 1); !errors.Is(err, ErrDisabled) {
		t.Errorf("Export error = %v, want ErrDisabled", err)
	}
}

func TestExportWritesJSONLines(t *testing.T) {
	src := staticLedger{entries: []model.LedgerEntry{
		{ID: 1, KidID: 4, EntryType: model.EntryCredit, Points: 5, Description: "Brush teeth", RefType: model.RefDailyTask, RefKey: "1"},
		{ID: 2, KidID: 4, EntryType: model.EntryBonus, Points: 10, Description: "Daily bonus"},
		{ID: 3, KidID: 4, EntryType: model.EntryDebit, Points: 8, Description: "Ice cream"},
	}}
	e, mock := newTestExporter(src)

	exp, err := e.Export(context.Background(), 2, 4)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	wantKey := "exports/family-2/kid-4/ledger-2026-10-15T183005Z.jsonl"
	if exp.Key != wantKey {
		t.Errorf("key = %q, want %q", exp.Key, wantKey)
	}
	if exp.Entries != 3 || exp.Balance != 7 {
		t.Errorf("entries=%d balance=%d, want 3 and 7", exp.Entries, exp.Balance)
	}

	data := mock.objects[wantKey]
	if int64(len(data)) != exp.Bytes {
		t.Errorf("bytes = %d, uploaded %d", exp.Bytes, len(data))
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("uploaded %d lines, want 3", lines)
	}
	if mock.types[wantKey] != "application/x-ndjson" {
		t.Errorf("content type = %q", mock.types[wantKey])
	}

	back, err := e.Fetch(context.Background(), wantKey)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(back) != 3 || back[2].EntryType != model.EntryDebit || back[0].RefKey != "1" {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestExportEmptyLedger(t *testing.T) {
	e, mock := newTestExporter(staticLedger{entries: []model.LedgerEntry{}})

	exp, err := e.Export(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exp.Entries != 0 || exp.Bytes != 0 {
		t.Errorf("empty export = %+v", exp)
	}
	if _, ok := mock.objects[exp.Key]; !ok {
		t.Error("empty ledger should still upload an object")
	}
}

func TestExportErrors(t *testing.T) {
	e, _ := newTestExporter(staticLedger{err: errors.New("db gone")})
	if _, err := e.Export(context.Background(), 1, 1); err == nil {
		t.Error("expected source error")
	}

	e, mock := newTestExporter(staticLedger{})
	mock.putErr = errors.New("access denied")
	if _, err := e.Export(context.Background(), 1, 1); err == nil || !strings.Contains(err.Error(), "upload to s3") {
		t.Errorf("error = %v, want upload failure", err)
	}
}
