package service

import (
	"bitwise74/waitlist-api/internal/model"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

var exportHeader = []string{
	"id",
	"email",
	"name",
	"referral_code",
	"referred_by_code",
	"referral_count",
	"rank",
	"created_at",
}

// ObjectUploader is satisfied by *manager.Uploader
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type ExportStore interface {
	All(ctx context.Context) ([]model.User, error)
}

// Exporter uploads a CSV snapshot of the whole waitlist to a bucket
type Exporter struct {
	store    ExportStore
	uploader ObjectUploader
	bucket   string
	prefix   string
	now      func() time.Time
}

func NewExporter(s ExportStore, u ObjectUploader, bucket, prefix string) *Exporter {
	return &Exporter{
		store:    s,
		uploader: u,
		bucket:   bucket,
		prefix:   prefix,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run writes the snapshot and returns the object key it was stored under
func (e *Exporter) Run(ctx context.Context) (string, error) {
	users, err := e.store.All(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, users); err != nil {
		return "", fmt.Errorf("failed to encode export, %w", err)
	}

	key := e.key()

	_, err = e.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export, %w", err)
	}

	zap.L().Info("Waitlist exported", zap.String("key", key), zap.Int("users", len(users)))
	return key, nil
}

func (e *Exporter) key() string {
	name := "waitlist-" + e.now().Format("20060102T150405Z") + ".csv"

	prefix := strings.Trim(e.prefix, "/")
	if prefix == "" {
		return name
	}

	return prefix + "/" + name
}

// WriteCSV writes users as CSV with a header row
func WriteCSV(w io.Writer, users []model.User) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	for _, u := range users {
		referredBy := ""
		if u.ReferredByCode != nil {
			referredBy = *u.ReferredByCode
		}

		err := cw.Write([]string{
			u.ID,
			u.Email,
			u.Name,
			u.ReferralCode,
			referredBy,
			strconv.Itoa(u.ReferralCount),
			strconv.Itoa(u.Rank),
			u.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
