package oss

import (
	"bytes"
	"context"
	"fmt"

	"fitting-mcp/common"
	"fitting-mcp/internal/utils"
)

// ImageStore 把图片写入 OSS 并返回可被渲染后端拉取的 URL
type ImageStore struct {
	client        OSSIface
	bucket        string
	signedExpires int64
}

// NewImageStore 创建图片存储。signedExpires > 0 时返回签名 URL。
func NewImageStore(client OSSIface, bucket string, signedExpires int64) *ImageStore {
	return &ImageStore{
		client:        client,
		bucket:        bucket,
		signedExpires: signedExpires,
	}
}

// NewImageStoreFromConfig 从配置创建图片存储
func NewImageStoreFromConfig(cfg *common.Config) (*ImageStore, error) {
	client, err := NewS3Client(S3Config{
		Endpoint:  cfg.OSSEndpoint,
		Region:    cfg.OSSRegion,
		AccessKey: cfg.OSSAccessKey,
		SecretKey: cfg.OSSSecretKey,
	})
	if err != nil {
		return nil, err
	}
	return NewImageStore(client, cfg.OSSBucket, int64(cfg.OSSSignedURLSeconds)), nil
}

// Upload 上传图片数据，返回 URL
func (s *ImageStore) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	key := utils.GenerateImagePath() + utils.GenerateImageFileName(mimeType)

	common.WithFields(map[string]interface{}{
		"bucket":       s.bucket,
		"key":          key,
		"content_type": mimeType,
		"size":         len(data),
	}).Debug("Uploading source image to OSS")

	if s.signedExpires <= 0 {
		url, err := s.client.UploadFileWithURL(ctx, s.bucket, key, bytes.NewReader(data), mimeType)
		if err != nil {
			return "", fmt.Errorf("failed to upload image to OSS: %w", err)
		}
		return url, nil
	}

	if _, err := s.client.UploadFile(ctx, s.bucket, key, bytes.NewReader(data), mimeType); err != nil {
		return "", fmt.Errorf("failed to upload image to OSS: %w", err)
	}
	url, err := s.client.GetSignedURL(ctx, s.bucket, key, s.signedExpires)
	if err != nil {
		return "", fmt.Errorf("failed to sign OSS image url: %w", err)
	}
	return url, nil
}
