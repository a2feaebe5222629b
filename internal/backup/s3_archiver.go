package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// putObjectAPI is the subset of the S3 client used for archiving.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Archiver implements Archiver for AWS S3.
type s3Archiver struct {
	bucket  string
	prefix  string
	region  string
	encrypt bool
	profile string

	client putObjectAPI
}

func newS3Archiver(config map[string]string) (Archiver, error) {
	a, err := s3ArchiverFromConfig(config)
	if err != nil {
		return nil, err
	}
	if err := a.initClient(); err != nil {
		return nil, fmt.Errorf("failed to initialize S3 backup: %w", err)
	}
	return a, nil
}

func s3ArchiverFromConfig(config map[string]string) (*s3Archiver, error) {
	bucket := config["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 backup requires 'bucket' configuration")
	}

	prefix := config["prefix"]
	if prefix == "" {
		prefix = "tether/backups"
	}

	region := config["region"]
	if region == "" {
		region = "us-east-1"
	}

	return &s3Archiver{
		bucket:  bucket,
		prefix:  prefix,
		region:  region,
		encrypt: config["encrypt"] == "true",
		profile: config["profile"],
	}, nil
}

func (a *s3Archiver) initClient() error {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(a.region))
	if a.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(a.profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	a.client = s3.NewFromConfig(cfg)
	return nil
}

func (a *s3Archiver) Archive(ctx context.Context, name string, files map[string][]byte) error {
	for rel, data := range files {
		key := path.Join(a.prefix, name, rel)
		input := &s3.PutObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		}
		if a.encrypt {
			input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
		}
		if _, err := a.client.PutObject(ctx, input); err != nil {
			return fmt.Errorf("failed to archive to s3://%s/%s: %w", a.bucket, key, describeS3Error(err))
		}
	}
	return nil
}

func (a *s3Archiver) Location() string {
	return fmt.Sprintf("s3://%s/%s", a.bucket, a.prefix)
}

// describeS3Error turns well-known S3 API failures into actionable errors.
func describeS3Error(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "NoSuchBucket":
		return fmt.Errorf("bucket does not exist: %w", err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("access denied, check AWS credentials: %w", err)
	default:
		return err
	}
}
