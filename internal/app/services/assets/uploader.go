// Package assets offloads non-code build outputs to object storage so
// they never count against the worker bundle size limit.
package assets

import (
	"context"
	"fmt"
	"sync"

	"github.com/appforge/platform/internal/app/domain/build"
	"github.com/appforge/platform/internal/app/metrics"
	"github.com/appforge/platform/pkg/logger"
	supabase "github.com/appforge/platform/supabase/client"
)

// DefaultBucket is the public bucket backing deployed app assets.
const DefaultBucket = "app-assets"

// defaultConcurrency bounds parallel uploads per deployment.
const defaultConcurrency = 8

// Uploader pushes binary assets into the storage bucket and hands back
// their public URLs for the worker bundle's redirect table.
type Uploader struct {
	client      *supabase.Client
	bucket      string
	concurrency int
	log         *logger.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithBucket overrides the target bucket.
func WithBucket(name string) Option {
	return func(u *Uploader) { u.bucket = name }
}

// WithConcurrency bounds the number of parallel uploads.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// NewUploader creates an asset uploader over the storage client.
func NewUploader(client *supabase.Client, log *logger.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		client:      client,
		bucket:      DefaultBucket,
		concurrency: defaultConcurrency,
		log:         log.Component("asset-uploader"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Result reports the outcome of an asset offload. A deployment proceeds
// on partial success; failed paths simply stay out of the redirect table
// and the worker serves 404 for them.
type Result struct {
	URLs   map[string]string
	Failed map[string]error
}

// Uploaded reports the number of assets that made it to the bucket.
func (r Result) Uploaded() int { return len(r.URLs) }

// Upload pushes every asset to the bucket under {appID}/{environment}/{path}
// and returns their public URLs. Individual failures are collected, not
// fatal: the deployment degrades to missing assets rather than aborting.
func (u *Uploader) Upload(ctx context.Context, appID, environment string, assets build.Artifact) (Result, error) {
	result := Result{
		URLs:   make(map[string]string, len(assets)),
		Failed: make(map[string]error),
	}
	if len(assets) == 0 {
		return result, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, u.concurrency)
	)

	for _, path := range assets.Paths() {
		content := assets[path]

		wg.Add(1)
		sem <- struct{}{}
		go func(path, content string) {
			defer wg.Done()
			defer func() { <-sem }()

			objectPath := fmt.Sprintf("%s/%s/%s", appID, environment, path)
			url, err := u.uploadOne(ctx, objectPath, path, content)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[path] = err
				return
			}
			result.URLs[path] = url
		}(path, content)
	}
	wg.Wait()

	metrics.RecordAssetsUploaded(len(result.URLs))
	if len(result.Failed) > 0 {
		u.log.WithField("app_id", appID).
			WithField("failed", len(result.Failed)).
			WithField("uploaded", len(result.URLs)).
			Warn("asset offload finished with failures")
	}
	return result, nil
}

func (u *Uploader) uploadOne(ctx context.Context, objectPath, sourcePath, content string) (string, error) {
	bucket := u.client.Storage().From(u.bucket)
	resp, err := bucket.Upload(ctx, objectPath, []byte(content), build.ContentTypeFor(sourcePath))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", sourcePath, err)
	}
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("upload %s: %w", sourcePath, err)
	}
	return bucket.GetPublicURL(objectPath), nil
}
