package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/audio"
)

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client wraps S3 storage operations
type Client struct {
	s3Client  objectAPI
	presign   *s3.PresignClient
	bucket    string
	publicURL string // optional base URL for public bucket (e.g. http://localhost:9000/skynet-narrations)
}

// NewClient creates a new S3 storage client. An endpoint without a scheme
// gets https when useSSL is set, http otherwise.
func NewClient(endpoint, region, bucket, accessKey, secretKey string, useSSL bool, publicURL string) (*Client, error) {
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	}

	// Custom endpoint for MinIO/LocalStack
	if endpoint != "" {
		configOpts = append(configOpts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing for MinIO. Checksums only when required so
	// S3-compatible backends (e.g. Cloudflare R2) accept the uploads.
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	log.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Msg("S3 client initialized")

	return &Client{
		s3Client:  s3Client,
		presign:   s3.NewPresignClient(s3Client),
		bucket:    bucket,
		publicURL: publicURL,
	}, nil
}

// PublicURL returns the public URL for an object key. Empty if publicURL was not configured.
func (c *Client) PublicURL(key string) string {
	if c.publicURL == "" {
		return ""
	}
	if c.publicURL[len(c.publicURL)-1] == '/' {
		return c.publicURL + key
	}
	return c.publicURL + "/" + key
}

// Upload uploads data to S3. contentLength must be > 0; S3-compatible backends (e.g. R2) require the Content-Length header.
func (c *Client) Upload(ctx context.Context, key string, data io.Reader, contentType string, contentLength int64) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(contentLength),
	}
	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Msg("File uploaded to S3")

	return nil
}

// GeneratePresignedURL generates a presigned URL for downloading an object
func (c *Client) GeneratePresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if c.presign == nil {
		return "", fmt.Errorf("presigning not available")
	}
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiration
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

// AudioSink archives every played narration as a WAV object. It is an audio.Device.
type AudioSink struct {
	client *Client
	prefix string
	expiry time.Duration
	last   func(url string)
}

// NewAudioSink creates a sink writing under prefix. onURL, if set, receives
// the public or presigned URL of each uploaded narration.
func NewAudioSink(client *Client, prefix string, onURL func(url string)) *AudioSink {
	return &AudioSink{client: client, prefix: prefix, expiry: 24 * time.Hour, last: onURL}
}

// Play uploads b and reports its URL.
func (s *AudioSink) Play(ctx context.Context, b *audio.Buffer) error {
	wav := b.WAV()
	key := fmt.Sprintf("%s%s/%s.wav", s.prefix, time.Now().UTC().Format("2006/01/02"), uuid.New())
	if err := s.client.Upload(ctx, key, bytes.NewReader(wav), "audio/wav", int64(len(wav))); err != nil {
		return err
	}
	url := s.client.PublicURL(key)
	if url == "" {
		var err error
		url, err = s.client.GeneratePresignedURL(ctx, key, s.expiry)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Narration uploaded without URL")
			return nil
		}
	}
	if s.last != nil {
		s.last(url)
	}
	return nil
}
