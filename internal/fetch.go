package internal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type ProgressWriter struct {
	Total      int64
	Written    int64
	OnProgress func(written, total int64)
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.Written += int64(n)
	if pw.OnProgress != nil {
		pw.OnProgress(pw.Written, pw.Total)
	}
	return n, nil
}

// CorpusFetcher downloads remote corpus files into a local cache so
// repeated fits of the same dataset skip the network.
type CorpusFetcher struct {
	cacheDir string
	token    string
	client   *http.Client
}

func NewCorpusFetcher(cacheDir, token string) *CorpusFetcher {
	return &CorpusFetcher{
		cacheDir: cacheDir,
		token:    token,
		client:   http.DefaultClient,
	}
}

// Fetch returns a local path for rawURL, downloading it on a cache
// miss. The cached filename keeps the source extension so format
// detection keeps working.
func (cf *CorpusFetcher) Fetch(ctx context.Context, rawURL string, onProgress func(written, total int64)) (string, error) {
	dest := filepath.Join(cf.cacheDir, cacheFilename(rawURL))

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.MkdirAll(cf.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	if err := cf.download(ctx, rawURL, dest, onProgress); err != nil {
		return "", err
	}

	return dest, nil
}

func (cf *CorpusFetcher) download(ctx context.Context, rawURL, dest string, onProgress func(written, total int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if cf.token != "" {
		req.Header.Set("Authorization", "Bearer "+cf.token)
	}

	resp, err := cf.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	tmpFile := dest + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	pw := &ProgressWriter{
		Total:      resp.ContentLength,
		OnProgress: onProgress,
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	closeErr := f.Close()

	if err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("write file: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("close file: %w", closeErr)
	}

	if err := os.Rename(tmpFile, dest); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("rename file: %w", err)
	}

	return nil
}

// cacheFilename derives a stable cache name from the URL, keeping the
// original extension.
func cacheFilename(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := hex.EncodeToString(sum[:8])

	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			name += ext
		}
	}
	return name
}

// IsRemote reports whether the input names a URL rather than a local
// file.
func IsRemote(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

func DefaultCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "topiclens", "corpora"), nil
}
