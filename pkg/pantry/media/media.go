// Package media stores uploaded recipe images on the local filesystem or in
// an S3-compatible bucket.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mikepea/pantry/pkg/pantry/config"
)

// RecipeImageDir is the prefix of every stored recipe image.
const RecipeImageDir = "uploads/recipe"

var newID = uuid.NewString

// RecipeImagePath returns a fresh storage path for an uploaded file, keeping
// only the original extension.
func RecipeImagePath(filename string) string {
	ext := filename[strings.LastIndex(filename, ".")+1:]
	return path.Join(RecipeImageDir, newID()+"."+ext)
}

// Store writes objects addressed by slash-separated paths.
type Store interface {
	Save(ctx context.Context, p string, r io.Reader, contentType string) error
}

// New returns the Store selected by cfg.Backend.
func New(ctx context.Context, cfg config.Media) (Store, error) {
	switch cfg.Backend {
	case config.MediaBackendLocal:
		return NewLocalStore(cfg.Root), nil
	case config.MediaBackendS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.Backend)
	}
}

// LocalStore keeps files under a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Save(_ context.Context, p string, r io.Reader, _ string) error {
	dst := filepath.Join(s.root, filepath.FromSlash(p))

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads files to a bucket, using the path as object key.
type S3Store struct {
	client putObjectAPI
	bucket string
}

// NewS3Store builds an S3 client for cfg. Static credentials and a custom
// endpoint are used when set, which is how MinIO is reached.
func NewS3Store(ctx context.Context, cfg config.Media) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.S3Bucket}, nil
}

func (s *S3Store) Save(ctx context.Context, p string, r io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(p),
		Body:   r,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put object %s: %w", p, err)
	}
	return nil
}
