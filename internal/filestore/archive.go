package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Archiver mirrors stored telemetry files to an external location after
// the local write. Mirror failures are warnings, never pipeline errors.
type Archiver interface {
	Archive(ctx context.Context, matchID, localPath string) error
	Enabled() bool
}

// NewArchiver returns the S3 mirror when bucket is set, otherwise a
// disabled no-op.
func NewArchiver(ctx context.Context, bucket, region string, logger zerolog.Logger) (Archiver, error) {
	if bucket == "" {
		return noopArchiver{}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	return &s3Archiver{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		logger:   logger.With().Str("component", "telemetry_archive").Str("bucket", bucket).Logger(),
	}, nil
}

type s3Archiver struct {
	uploader *manager.Uploader
	bucket   string
	logger   zerolog.Logger
}

func (a *s3Archiver) Enabled() bool { return true }

// Archive uploads the raw file under matchID={id}/raw.json.gz, matching
// the local layout.
func (a *s3Archiver) Archive(ctx context.Context, matchID, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s for archive: %w", localPath, err)
	}
	defer f.Close()

	key := "matchID=" + matchID + "/" + filepath.Base(localPath)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3: %w", key, err)
	}

	a.logger.Debug().Str("match_id", matchID).Str("key", key).Msg("telemetry archived")
	return nil
}

type noopArchiver struct{}

func (noopArchiver) Enabled() bool { return false }

func (noopArchiver) Archive(context.Context, string, string) error { return nil }
