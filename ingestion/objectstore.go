package ingestion

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"certprep-server/config"
)

// MinioLoader reads bank.yaml and questions.csv from an S3-compatible bucket
// under cfg.Prefix.
func MinioLoader(cfg config.MinioConfig) (BankLoader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	metaKey := path.Join(cfg.Prefix, BankFile)
	csvKey := path.Join(cfg.Prefix, QuestionsFile)
	metaName := fmt.Sprintf("s3://%s/%s", cfg.Bucket, metaKey)
	csvName := fmt.Sprintf("s3://%s/%s", cfg.Bucket, csvKey)

	return func(ctx context.Context) (*Bank, error) {
		metaObj, err := client.GetObject(ctx, cfg.Bucket, metaKey, minio.GetObjectOptions{})
		if err != nil {
			return nil, &RowError{File: metaName, Message: "failed to fetch bank metadata", Err: err}
		}
		defer metaObj.Close()
		meta, err := io.ReadAll(metaObj)
		if err != nil {
			return nil, &RowError{File: metaName, Message: "failed to read bank metadata", Fix: "Ensure the object exists and is readable.", Err: err}
		}

		csvObj, err := client.GetObject(ctx, cfg.Bucket, csvKey, minio.GetObjectOptions{})
		if err != nil {
			return nil, &RowError{File: csvName, Message: "failed to fetch question file", Err: err}
		}
		defer csvObj.Close()

		return ParseBank(metaName, meta, csvName, csvObj)
	}, nil
}
