package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURI(t *testing.T) {
	data, mimeType, err := ParseDataURI("data:image/png;base64,AQID")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, "image/png", mimeType)

	_, mimeType, err = ParseDataURI("data:image/jpeg;charset=binary;base64,AQID")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	errCases := map[string]string{
		"https://a/b.png":          "not a data URI",
		"data:image/png;base64":    "invalid data URI format",
		"data:image/png,AQID":      "not base64 encoded",
		"data:image/png;base64,!!": "failed to decode base64 data",
	}
	for input, msg := range errCases {
		_, _, err := ParseDataURI(input)
		assert.ErrorContains(t, err, msg, input)
	}
}

func TestInferMimeTypeFromURL(t *testing.T) {
	tests := map[string]string{
		"https://a/b.PNG":               "image/png",
		"https://a/b.jpeg?x-oss=1":      "image/jpeg",
		"https://a/b.webp#frag":         "image/webp",
		"https://a/b.gif":               "image/gif",
		"https://a/no-extension":        "image/jpeg",
		"https://a/b.png?name=file.gif": "image/png",
	}
	for url, want := range tests {
		assert.Equal(t, want, InferMimeTypeFromURL(url), url)
	}
}

func TestGetExtensionFromMimeType(t *testing.T) {
	assert.Equal(t, ".png", GetExtensionFromMimeType("image/png"))
	assert.Equal(t, ".jpg", GetExtensionFromMimeType("IMAGE/JPEG"))
	assert.Equal(t, ".webp", GetExtensionFromMimeType("image/webp"))
	assert.Equal(t, ".jpg", GetExtensionFromMimeType("application/octet-stream"))
}

func TestGenerateImageFileName(t *testing.T) {
	name := GenerateImageFileName("image/png")
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.NotEqual(t, name, GenerateImageFileName("image/png"))
	assert.True(t, strings.HasPrefix(GenerateImagePath(), "fittings/"))
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "short", TruncateForLog("short", 10))
	assert.Equal(t, "abcdefg...", TruncateForLog(strings.Repeat("abcdefghij", 3), 10))
	assert.Equal(t, "ab", TruncateForLog("abcdef", 2))
}

func TestDownloadImageFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed.png":
			w.Header().Set("Content-Type", "image/png; charset=binary")
			_, _ = w.Write([]byte{1, 2})
		case "/untyped.webp":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{3})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	data, mimeType, err := DownloadImageFromURL(context.Background(), srv.URL+"/typed.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)
	assert.Equal(t, "image/png", mimeType)

	_, mimeType, err = DownloadImageFromURL(context.Background(), srv.URL+"/untyped.webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mimeType)

	_, _, err = DownloadImageFromURL(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "status code 404")
}

func TestAPIError(t *testing.T) {
	err := &APIError{Provider: "fal", StatusCode: 500, Body: strings.Repeat("x", 1000)}
	assert.True(t, strings.HasPrefix(err.Error(), "fal api error: status 500, body: xxx"))
	assert.Less(t, len(err.Error()), 600)
	assert.False(t, err.IsAuthFailure())
	assert.True(t, (&APIError{StatusCode: 403}).IsAuthFailure())

	_, ok := AsAPIError(assert.AnError)
	assert.False(t, ok)
}
