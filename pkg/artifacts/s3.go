package artifacts

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// markerKey is written under the tenant prefix so the root shows up in
// bucket listings before any artifact does.
const markerKey = ".trackgate"

// S3Config holds object storage settings.
type S3Config struct {
	// Endpoint overrides the AWS endpoint, for MinIO and the like.
	Endpoint     string
	Region       string
	UsePathStyle bool
}

// S3Provider provisions s3:// artifact roots.
type S3Provider struct {
	client *s3.Client
}

// NewS3Provider creates the provider using the default AWS credential
// chain.
func NewS3Provider(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Provider{client: client}, nil
}

// NewS3ProviderWithClient wraps an existing client. Used by tests.
func NewS3ProviderWithClient(client *s3.Client) *S3Provider {
	return &S3Provider{client: client}
}

// Ensure implements Provider by writing an empty marker object under the
// tenant prefix.
func (p *S3Provider) Ensure(ctx context.Context, artifactRoot string) error {
	bucket, prefix, err := splitS3Root(artifactRoot)
	if err != nil {
		return err
	}

	key := markerKey
	if prefix != "" {
		key = prefix + "/" + markerKey
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return fmt.Errorf("failed to write artifact root marker: %w", err)
	}
	return nil
}

func splitS3Root(artifactRoot string) (bucket, prefix string, err error) {
	u, err := url.Parse(artifactRoot)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 artifact root %q", artifactRoot)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
