package storagesvc

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
)

type s3Storage struct {
	client *s3.S3
	bucket string
}

var _ core.FileStorage = (*s3Storage)(nil)

func NewS3Storage(conf core.StorageConfig) (*s3Storage, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(conf.S3Region),
		Credentials: credentials.NewStaticCredentials(conf.S3AccessKey, conf.S3SecretKey, ""),
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return &s3Storage{client: s3.New(sess), bucket: conf.S3Bucket}, nil
}

func (s *s3Storage) Save(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	// PutObject needs a seekable body
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return errors.Wrap(err, "reading upload")
	}
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	return errors.Wrap(err, "uploading to s3")
}

func (s *s3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, core.NewNotFoundError("file")
		}
		return nil, errors.Wrap(err, "downloading from s3")
	}
	return out.Body, nil
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrap(err, "deleting from s3")
}
