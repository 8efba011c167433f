package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"s3transfer/pkg/transfer"
)

// Backend implements the traditional path's object moves: download a
// source (object store or HTTP) to a staged file, upload a staged file to
// the destination store. One source client, one destination client; they
// may differ for cross-account transfers.
type Backend struct {
	source *s3.Client
	dest   *s3.Client
	httpc  *http.Client
	log    *zap.Logger
}

// NewBackend wires a backend from the two clients. dest may equal source.
func NewBackend(source, dest *s3.Client, log *zap.Logger) *Backend {
	if dest == nil {
		dest = source
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		source: source,
		dest:   dest,
		httpc:  &http.Client{},
		log:    log,
	}
}

// Download fetches src into path and returns the bytes written.
func (b *Backend) Download(ctx context.Context, src transfer.ObjectURL, path string) (int64, error) {
	if src.Kind == transfer.KindHTTP {
		return b.downloadHTTP(ctx, src.HTTP, path)
	}

	out, err := b.source.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", src.String(), err)
	}
	defer out.Body.Close()

	return writeFile(path, out.Body)
}

func (b *Backend) downloadHTTP(ctx context.Context, rawURL, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	resp, err := b.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to fetch %s: status code: %d", rawURL, resp.StatusCode)
	}
	return writeFile(path, resp.Body)
}

// Upload puts the staged file at path to dst and returns the bytes sent.
func (b *Backend) Upload(ctx context.Context, path string, dst transfer.ObjectURL) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat staged file: %w", err)
	}

	_, err = b.dest.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(dst.Bucket),
		Key:           aws.String(dst.Key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put %s: %w", dst.String(), err)
	}
	b.log.Debug("uploaded staged object",
		zap.String("destination", dst.String()),
		zap.Int64("bytes", info.Size()))
	return info.Size(), nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create staged file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("failed to write staged file: %w", err)
	}
	return n, nil
}
