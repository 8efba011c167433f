package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BucketReachable checks whether the destination bucket answers a head
// request with the given client.
func BucketReachable(ctx context.Context, client *s3.Client, bucket string) (bool, error) {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return true, nil
	}
	msg := err.Error()
	if strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchBucket") || strings.Contains(msg, "404") {
		return false, nil
	}
	return false, fmt.Errorf("failed to probe bucket %q: %w", bucket, err)
}

// EnsureBucket creates the destination bucket when it does not exist.
// An already-exists race is not an error.
func EnsureBucket(ctx context.Context, client *s3.Client, bucket, region string) error {
	exists, err := BucketReachable(ctx, client, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	if _, err := client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var taken *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &taken) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
	}
	return nil
}
