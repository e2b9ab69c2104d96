package fitting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 8 字节 PNG 文件头
const pngDataURI = "data:image/png;base64,iVBORw0KGgo="

func TestParseImageReference(t *testing.T) {
	t.Run("data URI 解析为内联图片", func(t *testing.T) {
		ref, err := ParseImageReference(pngDataURI)
		require.NoError(t, err)
		assert.Equal(t, ImageModeInline, ref.Mode())

		inline, ok := ref.Inline()
		require.True(t, ok)
		assert.Equal(t, "image/png", inline.MimeType)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, inline.Data)

		_, ok = ref.URL()
		assert.False(t, ok)
	})

	t.Run("http URL 解析为远程图片", func(t *testing.T) {
		ref, err := ParseImageReference("  https://cdn.example/pet.jpg ")
		require.NoError(t, err)
		assert.Equal(t, ImageModeRemote, ref.Mode())
		url, ok := ref.URL()
		assert.True(t, ok)
		assert.Equal(t, "https://cdn.example/pet.jpg", url)
	})

	tests := []struct {
		name   string
		source string
		errMsg string
	}{
		{"空字符串", "", "source image is required"},
		{"只有空白", "   ", "source image is required"},
		{"不支持的协议", "ftp://example.com/a.png", "must be a data URI or an http(s) URL"},
		{"非 base64", "data:image/png,rawbytes", "not base64 encoded"},
		{"非图片类型", "data:text/plain;base64,aGVsbG8=", "invalid mime type"},
		{"空数据", "data:image/png;base64,", "inline image is empty"},
		{"base64 损坏", "data:image/png;base64,@@@", "failed to decode base64 data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImageReference(tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestImageReference_Validate(t *testing.T) {
	assert.NoError(t, InlineImage([]byte{1}, "image/jpeg").Validate())
	assert.NoError(t, InlineImage([]byte{1}, "IMAGE/PNG").Validate())
	assert.NoError(t, RemoteImage("https://cdn.example/a.png").Validate())
	assert.Error(t, ImageReference{}.Validate())
	assert.Error(t, InlineImage(nil, "image/png").Validate())
	assert.Error(t, InlineImage([]byte{1}, "").Validate())
}

func TestImageReference_String(t *testing.T) {
	assert.Equal(t, "inline(image/png, 3 bytes)", InlineImage([]byte{1, 2, 3}, "image/png").String())
	assert.Equal(t, "remote(https://cdn.example/a.png)", RemoteImage("https://cdn.example/a.png").String())
	assert.Equal(t, "inline", ImageModeInline.String())
	assert.Equal(t, "remote", ImageModeRemote.String())
}
