package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"breathing_club_bot/internal/config"
)

type fakePutter struct {
	input *s3.PutObjectInput
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveExport(t *testing.T) {
	putter := &fakePutter{}
	a := &Archiver{
		bucket: "exports-bucket",
		client: putter,
		now:    func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) },
	}

	key, err := a.ArchiveExport(context.Background(), "subscribers.xlsx", []byte("data"))
	if err != nil {
		t.Fatalf("ArchiveExport() error = %v", err)
	}
	if !strings.HasPrefix(key, "exports/2024-03-10/") || !strings.HasSuffix(key, "-subscribers.xlsx") {
		t.Errorf("неожиданный ключ %q", key)
	}
	if putter.input == nil || *putter.input.Bucket != "exports-bucket" || *putter.input.Key != key {
		t.Errorf("PutObject вызван с %+v", putter.input)
	}

	if _, err := a.ArchiveExport(context.Background(), "empty.xlsx", nil); err == nil {
		t.Error("пустой файл должен отклоняться")
	}
}

func TestNewArchiverRequiresConfig(t *testing.T) {
	if _, err := NewArchiver(config.S3Config{Bucket: "b"}); err == nil {
		t.Error("без ключей архиватор не должен создаваться")
	}
	a, err := NewArchiver(config.S3Config{Bucket: "b", Region: "ru-central1", AccessKey: "k", SecretKey: "s", Endpoint: "https://storage.yandexcloud.net"})
	if err != nil || a == nil {
		t.Fatalf("NewArchiver() error = %v", err)
	}
}
