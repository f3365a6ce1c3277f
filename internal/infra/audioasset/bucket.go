package audioasset

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
)

// BucketConfig describes the S3 compatible bucket holding the recordings.
type BucketConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
}

type presigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// BucketResolver hands out short lived presigned GET URLs.
type BucketResolver struct {
	client    presigner
	bucket    string
	ttl       time.Duration
	fallbacks []string
	logger    *slog.Logger
}

// NewBucketResolver connects to the bucket endpoint.
func NewBucketResolver(cfg BucketConfig, fallbackReciters []string, logger *slog.Logger) (*BucketResolver, error) {
	endpoint := sanitizeEndpoint(cfg.Endpoint)
	useSSL := cfg.UseSSL || strings.HasPrefix(strings.ToLower(strings.TrimSpace(cfg.Endpoint)), "https")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       useSSL,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init bucket client: %w", err)
	}
	return newBucketResolver(client, cfg.Bucket, cfg.PresignTTL, fallbackReciters, logger), nil
}

func newBucketResolver(client presigner, bucket string, ttl time.Duration, fallbacks []string, logger *slog.Logger) *BucketResolver {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &BucketResolver{
		client:    client,
		bucket:    bucket,
		ttl:       ttl,
		fallbacks: fallbacks,
		logger:    logger.With("component", "audioasset.bucket"),
	}
}

// Resolve presigns the primary and fallback objects. A fallback that cannot be
// presigned is skipped; the primary must succeed.
func (r *BucketResolver) Resolve(ctx context.Context, name prayer.Name, reciter string) (adhan.Assets, error) {
	reciter, err := validate(name, reciter)
	if err != nil {
		return adhan.Assets{}, err
	}
	var assets adhan.Assets
	for i, rec := range reciters(reciter, r.fallbacks) {
		key := objectKey(rec, name)
		signed, err := r.client.PresignedGetObject(ctx, r.bucket, key, r.ttl, nil)
		if err != nil {
			if i == 0 {
				return adhan.Assets{}, fmt.Errorf("presign %s: %w", key, err)
			}
			r.logger.Warn("presign fallback asset failed", "key", key, "error", err)
			continue
		}
		if i == 0 {
			assets.Primary = signed.String()
			continue
		}
		assets.Fallbacks = append(assets.Fallbacks, signed.String())
	}
	return assets, nil
}

// sanitizeEndpoint strips schemes and paths, which minio.New rejects.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if host, _, found := strings.Cut(raw, "/"); found {
		return host
	}
	return raw
}
