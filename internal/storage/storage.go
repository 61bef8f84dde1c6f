package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/config"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
)

// Storage archives synthesized audio in S3-compatible object storage
type Storage struct {
	client     *minio.Client
	bucketName string
}

// New creates a new storage client
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

// ArchiveAudio stores base64 encoded audio and returns its object key
func (s *Storage) ArchiveAudio(ctx context.Context, userID, audioBase64, format string) (string, error) {
	data, err := DecodeAudio(audioBase64)
	if err != nil {
		return "", err
	}

	key := ObjectKey(userID, uuid.New().String(), format, time.Now())
	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType(format),
	})
	if err != nil {
		metrics.RecordStorageOperation("archive", "error", 0)
		return "", fmt.Errorf("failed to upload audio: %w", err)
	}

	metrics.RecordStorageOperation("archive", "success", int64(len(data)))
	return key, nil
}

// DecodeAudio accepts standard base64 with or without a data URI prefix
func DecodeAudio(audioBase64 string) ([]byte, error) {
	if i := strings.Index(audioBase64, ","); strings.HasPrefix(audioBase64, "data:") && i >= 0 {
		audioBase64 = audioBase64[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to decode audio: empty payload")
	}
	return data, nil
}

// ObjectKey lays archived clips out per user and day
func ObjectKey(userID, clipID, format string, at time.Time) string {
	if format == "" {
		format = "wav"
	}
	return fmt.Sprintf("audio/%s/%s/%s.%s", userID, at.UTC().Format("2006/01/02"), clipID, strings.ToLower(format))
}

// ContentType returns the content type of an audio format
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "", "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "ogg":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
