package fitting

import (
	"context"
	"fmt"
	"sync"
)

// --- Mocks ---

type invocation struct {
	Image    ImageReference
	Prompt   string
	Strength float64
}

type fakeBackend struct {
	mode  ImageMode
	resp  *RawResponse
	err   error
	calls []invocation
}

func (f *fakeBackend) ImageMode() ImageMode { return f.mode }

func (f *fakeBackend) Invoke(ctx context.Context, image ImageReference, prompt string, opts InvokeOptions) (*RawResponse, error) {
	f.calls = append(f.calls, invocation{Image: image, Prompt: prompt, Strength: opts.Strength})
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// fakeUploader 按 URL 记住上传的数据，模拟一次往返拉取
type fakeUploader struct {
	mu      sync.Mutex
	baseURL string
	url     string // 非空时固定返回该地址
	err     error
	stored  map[string][]byte
	calls   int
}

func newFakeUploader(baseURL string) *fakeUploader {
	return &fakeUploader{baseURL: baseURL, stored: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	url := f.url
	if url == "" {
		url = fmt.Sprintf("%s/%d.png", f.baseURL, f.calls)
	}
	f.stored[url] = append([]byte(nil), data...)
	return url, nil
}

func (f *fakeUploader) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.stored[url]
	if !ok {
		return nil, "", fmt.Errorf("not found: %s", url)
	}
	return data, "image/png", nil
}

type fakeFetcher struct {
	data     []byte
	mimeType string
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.mimeType, nil
}
