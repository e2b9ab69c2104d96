package fitting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_InlineToRemoteRoundTrip(t *testing.T) {
	uploader := newFakeUploader("https://storage.example")
	// 用存储本身作为下载源，验证往返后字节不变
	n := NewNormalizer(uploader, uploader)
	ctx := context.Background()

	original := []byte{0x89, 'P', 'N', 'G', 1, 2, 3, 4}
	source := InlineImage(original, "image/png")

	remote, err := n.Normalize(ctx, source, ImageModeRemote)
	require.NoError(t, err)
	assert.Equal(t, ImageModeRemote, remote.Mode())
	url, ok := remote.URL()
	require.True(t, ok)
	assert.Equal(t, "https://storage.example/1.png", url)

	back, err := n.Normalize(ctx, remote, ImageModeInline)
	require.NoError(t, err)
	inline, ok := back.Inline()
	require.True(t, ok)
	assert.Equal(t, original, inline.Data)

	// 修改源切片不影响已上传的数据
	original[0] = 0
	assert.Equal(t, byte(0x89), uploader.stored[url][0])
}

func TestNormalizer_SameModePassThrough(t *testing.T) {
	uploader := newFakeUploader("https://storage.example")
	fetcher := &fakeFetcher{}
	n := NewNormalizer(uploader, fetcher)

	inline := InlineImage([]byte{1, 2}, "image/png")
	got, err := n.Normalize(context.Background(), inline, ImageModeInline)
	require.NoError(t, err)
	assert.Equal(t, inline, got)

	remote := RemoteImage("https://cdn.example/pet.png")
	got, err = n.Normalize(context.Background(), remote, ImageModeRemote)
	require.NoError(t, err)
	assert.Equal(t, remote, got)

	assert.Equal(t, 0, uploader.calls)
	assert.Equal(t, 0, fetcher.calls)
}

func TestNormalizer_RemoteToInline(t *testing.T) {
	t.Run("下载成功", func(t *testing.T) {
		fetcher := &fakeFetcher{data: []byte{9, 9}, mimeType: "image/jpeg"}
		n := NewNormalizer(nil, fetcher)

		got, err := n.Normalize(context.Background(), RemoteImage("https://cdn.example/pet.jpg"), ImageModeInline)
		require.NoError(t, err)
		inline, ok := got.Inline()
		require.True(t, ok)
		assert.Equal(t, []byte{9, 9}, inline.Data)
		assert.Equal(t, "image/jpeg", inline.MimeType)
	})

	t.Run("下载失败", func(t *testing.T) {
		n := NewNormalizer(nil, &fakeFetcher{err: errors.New("connection refused")})
		_, err := n.Normalize(context.Background(), RemoteImage("https://cdn.example/pet.jpg"), ImageModeInline)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to download source image")
	})

	t.Run("下载到的不是图片", func(t *testing.T) {
		n := NewNormalizer(nil, &fakeFetcher{data: []byte("<html>"), mimeType: "text/html"})
		_, err := n.Normalize(context.Background(), RemoteImage("https://cdn.example/pet.jpg"), ImageModeInline)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unusable")
	})
}

func TestNormalizer_UploadFailures(t *testing.T) {
	source := InlineImage([]byte{1}, "image/png")

	t.Run("上传报错", func(t *testing.T) {
		uploader := newFakeUploader("https://storage.example")
		uploader.err = errors.New("quota exceeded")
		_, err := NewNormalizer(uploader, nil).Normalize(context.Background(), source, ImageModeRemote)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("返回地址不可用", func(t *testing.T) {
		uploader := newFakeUploader("https://storage.example")
		uploader.url = "bucket/key.png"
		_, err := NewNormalizer(uploader, nil).Normalize(context.Background(), source, ImageModeRemote)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable location")
	})

	t.Run("未配置存储", func(t *testing.T) {
		_, err := NewNormalizer(nil, nil).Normalize(context.Background(), source, ImageModeRemote)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no image uploader configured")
	})

	t.Run("非法引用", func(t *testing.T) {
		_, err := NewNormalizer(newFakeUploader("https://storage.example"), nil).Normalize(context.Background(), ImageReference{}, ImageModeRemote)
		require.Error(t, err)
	})
}
