package oss

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type fakeOSS struct {
	uploaded    map[string][]byte
	contentType string
	signedFor   int64
	uploadErr   error
	signErr     error
}

func newFakeOSS() *fakeOSS {
	return &fakeOSS{uploaded: make(map[string][]byte)}
}

func (f *fakeOSS) UploadFile(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, _ := io.ReadAll(reader)
	f.uploaded[key] = data
	f.contentType = contentType
	return bucket + "/" + key, nil
}

func (f *fakeOSS) GetSignedURL(ctx context.Context, bucket, key string, expiresIn int64) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signedFor = expiresIn
	return "https://" + bucket + ".oss.example/" + key + "?signature=abc", nil
}

func (f *fakeOSS) UploadFileWithURL(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error) {
	if _, err := f.UploadFile(ctx, bucket, key, reader, contentType); err != nil {
		return "", err
	}
	return buildObjectURL("oss.example", "", bucket, key), nil
}

// --- Tests ---

func TestImageStore_PublicURL(t *testing.T) {
	fake := newFakeOSS()
	store := NewImageStore(fake, "pets", 0)

	url, err := store.Upload(context.Background(), []byte{1, 2, 3}, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://pets.oss.example/fittings/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)
	assert.Equal(t, "image/png", fake.contentType)
	assert.Zero(t, fake.signedFor)
	require.Len(t, fake.uploaded, 1)
	for _, data := range fake.uploaded {
		assert.Equal(t, []byte{1, 2, 3}, data)
	}
}

func TestImageStore_SignedURL(t *testing.T) {
	fake := newFakeOSS()
	store := NewImageStore(fake, "pets", 3600)

	url, err := store.Upload(context.Background(), []byte{1}, "image/jpeg")
	require.NoError(t, err)
	assert.Contains(t, url, "signature=abc")
	assert.True(t, strings.Contains(url, ".jpg"), url)
	assert.Equal(t, int64(3600), fake.signedFor)
}

func TestImageStore_Errors(t *testing.T) {
	fake := newFakeOSS()
	fake.uploadErr = errors.New("access denied")
	_, err := NewImageStore(fake, "pets", 0).Upload(context.Background(), []byte{1}, "image/png")
	assert.ErrorContains(t, err, "access denied")

	fake = newFakeOSS()
	fake.signErr = errors.New("bad credentials")
	_, err = NewImageStore(fake, "pets", 60).Upload(context.Background(), []byte{1}, "image/png")
	assert.ErrorContains(t, err, "failed to sign OSS image url")
}

func TestBuildObjectURL(t *testing.T) {
	assert.Equal(t, "https://pets.oss-cn-hangzhou.aliyuncs.com/a.png", buildObjectURL("oss-cn-hangzhou.aliyuncs.com", "", "pets", "a.png"))
	assert.Equal(t, "https://pets.s3.us-east-1.amazonaws.com/a.png", buildObjectURL("", "us-east-1", "pets", "a.png"))
	assert.Equal(t, "https://pets.s3.amazonaws.com/a.png", buildObjectURL("", "", "pets", "a.png"))
}
