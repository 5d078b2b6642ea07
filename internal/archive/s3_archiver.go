package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Archiver implements Archiver by writing each record as an S3 object.
type s3Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Archiver creates a new S3-backed webhook archiver.
func NewS3Archiver(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Archiver, error) {
	logger = logger.With().Str("component", "s3-webhook-archive").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("prefix", prefix).
		Msg("S3 webhook archive initialised")

	return newS3Archiver(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3Archiver(client putObjectAPI, bucket, prefix string, logger zerolog.Logger) *s3Archiver {
	return &s3Archiver{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Archive writes rec under <prefix>webhooks/<yyyy>/<mm>/<dd>/<verified|rejected>/<uuid>.json.
// The caller's request id is kept in object metadata only.
func (a *s3Archiver) Archive(ctx context.Context, rec Record) error {
	key := a.key(rec)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(rec.Body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"event":           rec.Event,
			"request-id":      rec.RequestID,
			"signature-valid": strconv.FormatBool(rec.SignatureValid),
		},
	})
	if err != nil {
		a.logger.Error().
			Err(err).
			Str("bucket", a.bucket).
			Str("key", key).
			Msg("failed to archive webhook")
		return fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", a.bucket, key, err)
	}

	a.logger.Debug().Str("key", key).Msg("webhook archived")
	return nil
}

func (a *s3Archiver) key(rec Record) string {
	verdict := "rejected"
	if rec.SignatureValid {
		verdict = "verified"
	}
	return a.prefix + path.Join("webhooks", rec.ReceivedAt.UTC().Format("2006/01/02"), verdict, uuid.NewString()+".json")
}
