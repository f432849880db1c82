package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const attachmentKeyPrefix = "attachments"

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PresignTTL time.Duration
}

// AttachmentStore holds message attachments in S3. Uploads and downloads go
// through presigned URLs; the service never proxies file bytes.
type AttachmentStore struct {
	cfg     S3Config
	s3      *s3.Client
	presign *s3.PresignClient
}

func NewAttachmentStore(ctx context.Context, cfg S3Config) (*AttachmentStore, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}
	if cfg.PresignTTL == 0 {
		cfg.PresignTTL = 15 * time.Minute
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if parsed, err := url.Parse(endpoint); err == nil {
			endpoint = parsed.String()
		}
		opts = append(opts, config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if service == s3.ServiceID {
					return aws.Endpoint{URL: endpoint, SigningRegion: cfg.Region}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &AttachmentStore{
		cfg:     cfg,
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
	}, nil
}

// NewObjectKey builds a collision-free storage key scoped to a thread.
func NewObjectKey(threadID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s-%s", attachmentKeyPrefix, threadID, uuid.NewString(), path.Base(fileName))
}

// PresignUpload returns a presigned PUT URL and the headers the uploader must
// send with it.
func (s *AttachmentStore) PresignUpload(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error) {
	if key == "" {
		return "", nil, errors.New("object key is required")
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if sizeBytes > 0 {
		input.ContentLength = aws.Int64(sizeBytes)
	}

	presigned, err := s.presign.PresignPutObject(ctx, input, func(po *s3.PresignOptions) {
		po.Expires = s.cfg.PresignTTL
	})
	if err != nil {
		return "", nil, err
	}

	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	if sizeBytes > 0 {
		headers["Content-Length"] = strconv.FormatInt(sizeBytes, 10)
	}
	return presigned.URL, headers, nil
}

// PresignDownload returns a presigned GET URL for an attachment.
func (s *AttachmentStore) PresignDownload(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("object key is required")
	}
	presigned, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.cfg.PresignTTL
	})
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}
