// Package storage holds the object-store API surface the engine needs:
// client construction, single-object download/upload for the traditional
// path, and capability probing.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig configures one S3 client, matching what arrives in a
// request's credentials block.
type ClientConfig struct {
	Region       string
	EndpointURL  string
	AccessKey    string
	SecretKey    string
	SessionToken string
	MaxRetries   int
	Timeout      time.Duration
}

// NewClient builds an S3 client. Custom endpoints get path-style
// addressing and an immutable hostname; most non-AWS providers require
// both, and following redirects turns 301s into signature errors.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		// The SDK needs a region for signing even when the endpoint
		// ignores it.
		region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		))
	}
	if cfg.EndpointURL != "" {
		loadOptions = append(loadOptions, config.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOptions := []func(*s3.Options){
		func(o *s3.Options) {
			o.RetryMaxAttempts = cfg.MaxRetries
		},
	}
	if cfg.EndpointURL != "" {
		clientOptions = append(clientOptions, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOptions...), nil
}
