package service_test

import (
	"bitwise74/waitlist-api/internal/model"
	"bitwise74/waitlist-api/internal/service"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if u.err != nil {
		return nil, u.err
	}

	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	u.input = in
	u.body = b

	return &manager.UploadOutput{Key: in.Key}, nil
}

type fakeExportStore struct {
	users []model.User
	err   error
}

func (s fakeExportStore) All(context.Context) ([]model.User, error) {
	return s.users, s.err
}

func exportUsers() []model.User {
	created := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	return []model.User{
		{ID: "a", Email: "alice@example.com", Name: "Alice", ReferralCode: "AAAAAAAA", ReferralCount: 1, Rank: 50, CreatedAt: created},
		{ID: "b", Email: "bob@example.com", Name: "Bob, Jr.", ReferralCode: "BBBBBBBB", ReferredByCode: ptr("AAAAAAAA"), Rank: 101, CreatedAt: created.Add(time.Second)},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, service.WriteCSV(&buf, exportUsers()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"id", "email", "name", "referral_code", "referred_by_code", "referral_count", "rank", "created_at"}, rows[0])
	assert.Equal(t, []string{"a", "alice@example.com", "Alice", "AAAAAAAA", "", "1", "50", "2025-03-04T05:06:07Z"}, rows[1])
	assert.Equal(t, []string{"b", "bob@example.com", "Bob, Jr.", "BBBBBBBB", "AAAAAAAA", "0", "101", "2025-03-04T05:06:08Z"}, rows[2])
}

func TestExporterUploadsSnapshot(t *testing.T) {
	up := &fakeUploader{}
	e := service.NewExporter(fakeExportStore{users: exportUsers()}, up, "backups", "/exports/")

	key, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, `^exports/waitlist-\d{8}T\d{6}Z\.csv$`, key)
	require.NotNil(t, up.input)
	assert.Equal(t, "backups", *up.input.Bucket)
	assert.Equal(t, key, *up.input.Key)
	assert.Equal(t, "text/csv", *up.input.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(up.body)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExporterWithoutPrefix(t *testing.T) {
	e := service.NewExporter(fakeExportStore{}, &fakeUploader{}, "backups", "")

	key, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^waitlist-\d{8}T\d{6}Z\.csv$`, key)
}

func TestExporterErrors(t *testing.T) {
	_, err := service.NewExporter(fakeExportStore{err: errors.New("db down")}, &fakeUploader{}, "b", "p").Run(context.Background())
	assert.Error(t, err)

	_, err = service.NewExporter(fakeExportStore{users: exportUsers()}, &fakeUploader{err: errors.New("denied")}, "b", "p").Run(context.Background())
	assert.ErrorContains(t, err, "failed to upload export")
}
