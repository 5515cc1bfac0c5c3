package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrFetch is wrapped by every image download failure.
var ErrFetch = errors.New("asset fetch failed")

const maxImageBytes = 5 << 20

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads images into a workspace.
type Fetcher struct {
	client  HTTPDoer
	timeout time.Duration
}

// NewFetcher creates a Fetcher whose downloads give up after timeout.
func NewFetcher(client HTTPDoer, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{client: client, timeout: timeout}
}

// Fetch downloads url once and stores it in dir under every name. Each name
// appears atomically, so a reader never sees a partial image.
func (f *Fetcher) Fetch(ctx context.Context, url, dir string, names ...string) error {
	data, err := f.download(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetch, url, err)
	}

	for _, name := range names {
		if err := writeAtomic(dir, name, data); err != nil {
			return fmt.Errorf("%w: store %s: %w", ErrFetch, name, err)
		}
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
