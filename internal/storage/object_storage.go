// Package storage отвечает за хранение медиафайлов профилей.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/ignatzorin/influmarket-backend/internal/config"
	"github.com/ignatzorin/influmarket-backend/internal/logger"
	"github.com/ignatzorin/influmarket-backend/internal/pkg/apperror"
)

// MediaStorage сохраняет изображения в S3-совместимое хранилище.
// Если бакет недоступен или не настроен, изображение кодируется в data-URL
// и хранится прямо в профиле: функциональность деградирует, но не ломается.
type MediaStorage struct {
	client         *s3.Client
	bucket         string
	publicBaseURL  string
	maxUploadBytes int64
}

// NewMediaStorage создаёт хранилище медиафайлов.
// При пустых учётных данных S3 клиент не создаётся и работает только
// data-URL fallback.
func NewMediaStorage(ctx context.Context, cfg *config.Config) (*MediaStorage, error) {
	ms := &MediaStorage{
		bucket:         cfg.S3Bucket,
		publicBaseURL:  cfg.S3PublicBaseURL,
		maxUploadBytes: int64(cfg.MaxUploadSizeMB) * 1024 * 1024,
	}

	if cfg.S3Bucket == "" || cfg.S3AccessKeyID == "" {
		logger.WithComponent("storage").Warn(
			"storage: S3 не настроен, аватары будут сохраняться как data-URL")
		return ms, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось загрузить конфигурацию AWS: %w", err)
	}

	ms.client = s3.NewFromConfig(awsCfg)
	return ms, nil
}

// SaveAvatar сохраняет изображение аватара и возвращает его URL.
// Тип файла определяется по содержимому, а не по расширению.
func (s *MediaStorage) SaveAvatar(ctx context.Context, userID uuid.UUID, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperror.New(apperror.ErrCodeValidation, "пустой файл")
	}
	if int64(len(data)) > s.maxUploadBytes {
		return "", apperror.New(apperror.ErrCodeValidation, fmt.Sprintf(
			"размер файла превышает лимит %d МБ", s.maxUploadBytes/(1024*1024)))
	}

	kind, err := filetype.Match(data)
	if err != nil || !isAllowedImage(kind) {
		return "", apperror.New(apperror.ErrCodeValidation,
			"допустимы только изображения jpeg, png, gif и webp")
	}

	if s.client == nil {
		return dataURL(kind, data), nil
	}

	key := fmt.Sprintf("avatars/%s/%d.%s", userID, time.Now().UnixNano(), kind.Extension)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		// Сбой загрузки не роняет операцию: откатываемся на data-URL.
		logger.WithComponent("storage").WithError(err).
			Warn("storage: загрузка в S3 не удалась, используется data-URL")
		return dataURL(kind, data), nil
	}

	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", s.publicBaseURL, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, awsRegionOrDefault(s), key), nil
}

// PresignedURL выдаёт временную ссылку на приватный объект.
func (s *MediaStorage) PresignedURL(ctx context.Context, key string) (string, error) {
	if s.client == nil || key == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "хранилище S3 не настроено")
	}

	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("storage: не удалось выдать presigned URL: %w", err)
	}
	return request.URL, nil
}

// Delete удаляет объект из хранилища. Для data-URL удалять нечего.
func (s *MediaStorage) Delete(ctx context.Context, key string) error {
	if s.client == nil || key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: не удалось удалить объект: %w", err)
	}
	return nil
}

func isAllowedImage(kind types.Type) bool {
	switch kind.Extension {
	case "jpg", "png", "gif", "webp":
		return true
	}
	return false
}

func dataURL(kind types.Type, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", kind.MIME.Value, base64.StdEncoding.EncodeToString(data))
}

func awsRegionOrDefault(s *MediaStorage) string {
	if s.client != nil {
		if region := s.client.Options().Region; region != "" {
			return region
		}
	}
	return "us-east-1"
}
