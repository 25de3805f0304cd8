// Package storage uploads profile avatars to the provider's s3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/folioshop/storefront/libs/logging"
)

const (
	// DefaultBucket holds profile avatars.
	DefaultBucket = "avatars"
	// DefaultRegion is used when none is configured.
	DefaultRegion = "us-east-1"
	// MaxObjectSize bounds a single upload.
	MaxObjectSize = 5 << 20

	s3Path     = "/storage/v1/s3"
	publicPath = "/storage/v1/object/public"
)

var (
	// ErrObjectTooLarge is returned for uploads over MaxObjectSize.
	ErrObjectTooLarge = errors.New("storage: object too large")
	// ErrEmptyKey is returned when no object key is given.
	ErrEmptyKey = errors.New("storage: object key is required")
)

// PutObjectAPI allows for a PutObject mock
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config locates the storage of a hosted project.
type Config struct {
	ProjectURL string
	// ProjectRef is derived from the ProjectURL host when empty.
	ProjectRef string
	AnonKey    string
	Region     string
	Bucket     string
}

func (c Config) withDefaults() Config {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	c.ProjectURL = strings.TrimRight(c.ProjectURL, "/")
	return c
}

// Store writes objects on behalf of a signed in user.
type Store struct {
	cfg Config
	// newAPI builds an s3 api authorised by a user access token.
	newAPI func(accessToken string) PutObjectAPI
}

// New returns a Store for cfg.
func New(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	u, err := url.Parse(cfg.ProjectURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("storage: invalid project url %q", cfg.ProjectURL)
	}

	if cfg.ProjectRef == "" {
		cfg.ProjectRef = strings.Split(u.Hostname(), ".")[0]
	}

	s := &Store{cfg: cfg}
	s.newAPI = func(accessToken string) PutObjectAPI {
		return s3.New(s3.Options{
			Region:                     cfg.Region,
			Credentials:                credentials.NewStaticCredentialsProvider(cfg.ProjectRef, cfg.AnonKey, accessToken),
			BaseEndpoint:               aws.String(cfg.ProjectURL + s3Path),
			UsePathStyle:               true,
			RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
			ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
		})
	}

	return s, nil
}

// NewWithAPI returns a Store writing through api.
func NewWithAPI(cfg Config, api PutObjectAPI) *Store {
	return &Store{
		cfg:    cfg.withDefaults(),
		newAPI: func(string) PutObjectAPI { return api },
	}
}

// Bucket returns the bucket objects are written to.
func (s *Store) Bucket() string {
	return s.cfg.Bucket
}

// Upload writes body at key in the bucket, authorised by accessToken.
func (s *Store) Upload(ctx context.Context, accessToken, key string, body io.Reader, contentType string) error {
	logger := logging.Logger(ctx, "storage.Upload")

	if key == "" {
		return ErrEmptyKey
	}

	b, err := io.ReadAll(io.LimitReader(body, MaxObjectSize+1))
	if err != nil {
		return fmt.Errorf("error reading object body: %w", err)
	}

	if len(b) > MaxObjectSize {
		return ErrObjectTooLarge
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
		ContentType:   aws.String(contentType),
	}

	if _, err := s.newAPI(accessToken).PutObject(ctx, input); err != nil {
		return fmt.Errorf("error putting object: %w", err)
	}

	logger.Debug().Str("key", key).Int("size", len(b)).Msg("object uploaded")

	return nil
}

// PublicURL returns the public url of key in the bucket.
func (s *Store) PublicURL(key string) string {
	return s.cfg.ProjectURL + publicPath + "/" + s.cfg.Bucket + "/" + key
}
