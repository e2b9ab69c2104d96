package oss

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fitting-mcp/common"
	"fitting-mcp/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client S3 兼容的 OSS 客户端实现
type S3Client struct {
	client     *s3.Client
	httpClient *http.Client
	endpoint   string
	region     string
}

// S3Config S3 客户端配置
type S3Config struct {
	Endpoint  string // 例如 s3.amazonaws.com 或 oss-cn-hangzhou.aliyuncs.com，留空使用 AWS 默认端点
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client 创建新的 S3 客户端
func NewS3Client(cfg S3Config) (*S3Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", cfg.Endpoint))
		}
	})

	return &S3Client{
		client:     client,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		endpoint:   cfg.Endpoint,
		region:     cfg.Region,
	}, nil
}

// UploadFile 上传文件到 OSS
func (c *S3Client) UploadFile(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	// 阿里云 OSS 不支持 SDK PutObject 的 aws-chunked 编码，改用预签名 PUT
	if strings.Contains(c.endpoint, ".aliyuncs.com") {
		err = c.presignedPut(ctx, bucket, key, body, contentType)
	} else {
		_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(contentType),
		})
	}
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"bucket": bucket,
			"key":    key,
			"size":   len(body),
		}).Error("Failed to upload file to OSS")
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	filePath := fmt.Sprintf("%s/%s", bucket, key)
	common.WithFields(map[string]interface{}{
		"file_path": filePath,
		"size":      len(body),
	}).Info("File uploaded to OSS successfully")

	return filePath, nil
}

// presignedPut 用预签名 URL + 原生 HTTP PUT 上传（标准 Content-Length）
func (c *S3Client) presignedPut(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	presigned, err := s3.NewPresignClient(c.client).PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to presign PUT URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presigned.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for k, v := range presigned.SignedHeader {
		for _, hv := range v {
			req.Header.Add(k, hv)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload file via presigned PUT: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &utils.APIError{Provider: "oss", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// GetSignedURL 获取文件的带签名 URL
func (c *S3Client) GetSignedURL(ctx context.Context, bucket, key string, expiresIn int64) (string, error) {
	request, err := s3.NewPresignClient(c.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = time.Duration(expiresIn) * time.Second
	})
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"bucket": bucket,
			"key":    key,
		}).Error("Failed to generate signed URL")
		return "", fmt.Errorf("failed to presign URL: %w", err)
	}
	return request.URL, nil
}

// UploadFileWithURL 上传文件并返回对象的公开 URL（不带签名）
func (c *S3Client) UploadFileWithURL(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error) {
	if _, err := c.UploadFile(ctx, bucket, key, reader, contentType); err != nil {
		return "", err
	}
	return buildObjectURL(c.endpoint, c.region, bucket, key), nil
}

// buildObjectURL 构造对象的公开 URL（virtual-hosted 风格）
func buildObjectURL(endpoint, region, bucket, key string) string {
	if endpoint != "" {
		return fmt.Sprintf("https://%s.%s/%s", bucket, endpoint, key)
	}
	if region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
}
