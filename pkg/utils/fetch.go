// Package utils carries the pipeline's supporting machinery: a
// badger-backed spill store for planet-scale ingests and a cached
// download helper for remote inputs.
package utils

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("file not found on server")

type progressWriter struct {
	io.Writer
	total uint64
	last  uint64
	label string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += uint64(n)
	if pw.total-pw.last > 5*1024*1024 { // Log every 5MB
		log.Debug().Str("file", pw.label).Uint64("mb", pw.total/1024/1024).Msg("Downloading")
		pw.last = pw.total
	}
	return n, err
}

// DownloadFile fetches a URL to a local path, writing through a temp
// file in the same directory so a partial download never lands at the
// final name.
func DownloadFile(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing response body")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", tmpName).Msg("Removing temp file")
		}
	}()

	pw := &progressWriter{Writer: tmp, label: filepath.Base(path)}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// CacheFileName flattens a URL into a local filename. The whole URL
// minus its scheme goes into the name, so distinct sources sharing a
// basename never collide.
func CacheFileName(url string) string {
	name := strings.TrimPrefix(url, "https://")
	name = strings.TrimPrefix(name, "http://")
	return strings.ReplaceAll(name, "/", "_")
}

// FetchToCache resolves a URL to a local path, downloading into
// cacheDir on first use and reusing the cached copy afterwards.
func FetchToCache(url, cacheDir string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	path := filepath.Join(cacheDir, CacheFileName(url))
	if _, err := os.Stat(path); err == nil {
		log.Info().Str("path", path).Msg("Using cached download")
		return path, nil
	}

	log.Info().Str("url", url).Msg("Downloading")
	if err := DownloadFile(url, path); err != nil {
		return "", err
	}
	return path, nil
}

// IsURL reports whether an input names a remote resource rather than a
// local file.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
