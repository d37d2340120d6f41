// Package media stores builder uploads in one MinIO bucket, keyed by
// workspace.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"launchkit/api/internal/util"
)

// MaxUploadBytes bounds a single upload.
const MaxUploadBytes = 10 << 20

var (
	ErrDisabled         = errors.New("media storage not configured")
	ErrUnsupportedType  = errors.New("unsupported media type")
	ErrForeignObjectKey = errors.New("object key outside workspace")
)

var allowedContentTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/avif":      ".avif",
	"application/pdf": ".pdf",
}

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// Client wraps MinIO. An empty endpoint yields a disabled client whose
// operations return ErrDisabled.
type Client struct {
	mc      *minio.Client
	bucket  string
	enabled bool

	bucketOnce sync.Once
	bucketErr  error
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return &Client{}, nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Client{mc: mc, bucket: cfg.Bucket, enabled: true}, nil
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// ObjectKey builds the key for a new upload. Keys always start with the
// workspace prefix so ownership can be checked from the key alone.
func ObjectKey(workspaceID, siteID, fileName, contentType string) string {
	name := sanitizeName(strings.TrimSuffix(path.Base(fileName), path.Ext(fileName)))
	ext := allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return fmt.Sprintf("%s%s/%s-%s%s", workspacePrefix(workspaceID), siteID, util.NewID(""), name, ext)
}

func workspacePrefix(workspaceID string) string {
	return "workspaces/" + workspaceID + "/"
}

// KeyBelongsTo reports whether key lives under the workspace prefix.
func KeyBelongsTo(key, workspaceID string) bool {
	return workspaceID != "" && strings.HasPrefix(key, workspacePrefix(workspaceID)) && !strings.Contains(key, "..")
}

// AllowedContentType reports whether uploads of the media type are accepted.
func AllowedContentType(contentType string) bool {
	_, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}

func sanitizeName(name string) string {
	var out strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			out.WriteRune(r)
		case r == ' ' || r == '.':
			out.WriteByte('-')
		}
		if out.Len() >= 60 {
			break
		}
	}
	if out.Len() == 0 {
		return "file"
	}
	return out.String()
}

func (c *Client) ensureBucket(ctx context.Context) error {
	c.bucketOnce.Do(func() {
		exists, err := c.mc.BucketExists(ctx, c.bucket)
		if err != nil {
			c.bucketErr = fmt.Errorf("check bucket: %w", err)
			return
		}
		if !exists {
			if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
				c.bucketErr = fmt.Errorf("create bucket: %w", err)
			}
		}
	})
	return c.bucketErr
}

// Put uploads an object.
func (c *Client) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if !AllowedContentType(contentType) {
		return ErrUnsupportedType
	}
	if err := c.ensureBucket(ctx); err != nil {
		return err
	}
	if _, err := c.mc.PutObject(ctx, c.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

type Object struct {
	Reader       io.ReadCloser
	ContentType  string
	Size         int64
	LastModified time.Time
}

// Get downloads an object. The caller closes Reader.
func (c *Client) Get(ctx context.Context, key string) (*Object, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return &Object{
		Reader:       obj,
		ContentType:  info.ContentType,
		Size:         info.Size,
		LastModified: info.LastModified,
	}, nil
}

// Delete removes an object.
func (c *Client) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
