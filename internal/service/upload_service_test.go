package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/pkg/cloudinary"
)

type storageStub struct {
	uploaded bytes.Buffer
}

func (s *storageStub) Upload(ctx context.Context, name string, reader io.Reader) (cloudinary.StoredImage, error) {
	s.uploaded.Reset()
	if _, err := s.uploaded.ReadFrom(reader); err != nil {
		return cloudinary.StoredImage{}, err
	}
	return cloudinary.StoredImage{
		URL: "https://cdn.example.com/" + name,
		Key: "answers/" + name,
	}, nil
}

type uploadRepoStub struct {
	record models.AnswerImage
}

func (u *uploadRepoStub) Create(ctx context.Context, record *models.AnswerImage) error {
	u.record = *record
	return nil
}

func TestUploadServiceRejectsSize(t *testing.T) {
	svc := NewUploadService(&storageStub{}, &uploadRepoStub{}, 1, zerolog.Nop())

	file := buildFileHeader(t, "scan.png", bytes.Repeat([]byte("a"), 2*1024*1024))

	_, err := svc.Upload(context.Background(), file, nil)
	require.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestUploadServiceRejectsNonImage(t *testing.T) {
	svc := NewUploadService(&storageStub{}, &uploadRepoStub{}, 5, zerolog.Nop())

	file := buildFileHeader(t, "answer.txt", []byte("plain text answer"))
	_, err := svc.Upload(context.Background(), file, nil)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
}

func TestUploadServiceStoresImageRef(t *testing.T) {
	storage := &storageStub{}
	repo := &uploadRepoStub{}
	svc := NewUploadService(storage, repo, 5, zerolog.Nop())

	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	file := buildFileHeader(t, "My Scan (1).png", pngHeader)

	learnerID := uint(7)
	resp, err := svc.Upload(context.Background(), file, &learnerID)
	require.NoError(t, err)

	require.Equal(t, "my-scan--1.png", resp.FileName)
	require.Contains(t, resp.URL, "my-scan--1.png")
	require.Equal(t, "answers/my-scan--1.png", resp.Key)
	require.Equal(t, "image/png", resp.MimeType)
	require.NotEmpty(t, resp.Checksum)
	require.NotNil(t, repo.record.LearnerID)
	require.Equal(t, learnerID, *repo.record.LearnerID)
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
