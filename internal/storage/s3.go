// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend uploads the finalized result files to a bucket when the run
// ends. It stores no rows itself; it ships whatever the file-writing
// backends produced in the result directory.
type S3Backend struct {
	bucket   string
	region   string
	endpoint string
	prefix   string

	storage *ResultsStorage
	client  *s3.Client
}

func NewS3Backend(input schema.BackendInput) *S3Backend {
	return &S3Backend{
		bucket:   input.Bucket,
		region:   input.Region,
		endpoint: input.Endpoint,
		prefix:   input.Prefix,
	}
}

func (b *S3Backend) Setup(s *ResultsStorage) error {
	b.storage = s

	if b.bucket == "" {
		return fmt.Errorf("results: s3 backend needs a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if b.region != "" {
		opts = append(opts, awsconfig.WithRegion(b.region))
	}
	if key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); key != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("results: loading AWS config failed: %w", err)
	}

	b.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if b.endpoint != "" {
			o.BaseEndpoint = aws.String(b.endpoint)
			o.UsePathStyle = true
		}
	})

	return nil
}

func (b *S3Backend) StoreAtRuntime() bool { return false }

func (b *S3Backend) StoreRow(compIdx int, chType schema.ChannelStoreType, rowIdx int) error {
	// rows are shipped as files at Finish
	return nil
}

func (b *S3Backend) Flush() error { return nil }

func (b *S3Backend) Finish() error {
	dir := b.storage.ResultDir()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("results: reading result directory failed: %w", err)
	}

	ctx := context.Background()
	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return err
		}

		key := entry.Name()
		if b.prefix != "" {
			key = b.prefix + "/" + key
		}

		_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("results: uploading '%s' failed: %w", key, err)
		}
		uploaded++
	}

	cclog.Infof("[STORAGE]> Uploaded %d result files to s3://%s/%s", uploaded, b.bucket, b.prefix)
	return nil
}
