package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"breathing_club_bot/internal/config"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// objectPutter часть *s3.Client, нужная архиватору
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver складывает выгрузки админки в S3-совместимое хранилище
type Archiver struct {
	bucket string
	client objectPutter
	now    func() time.Time
}

func NewArchiver(cfg config.S3Config) (*Archiver, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 bucket and credentials are required")
	}

	options := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
		options.UsePathStyle = true
	}

	return &Archiver{
		bucket: cfg.Bucket,
		client: s3.New(options),
		now:    time.Now,
	}, nil
}

// ArchiveExport загружает файл и возвращает ключ объекта
func (a *Archiver) ArchiveExport(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data to upload")
	}

	key := a.objectKey(filename)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(xlsxContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return key, nil
}

func (a *Archiver) objectKey(filename string) string {
	return path.Join("exports", a.now().UTC().Format("2006-01-02"), uuid.NewString()+"-"+path.Base(filename))
}
