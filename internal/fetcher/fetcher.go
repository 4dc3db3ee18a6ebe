// Package fetcher downloads model bundles over HTTP and FTP and streams
// delimited text files.
package fetcher

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the remote file does not exist.
var ErrNotFound = errors.New("fetcher: not found")

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Options configures New.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	RateLimit   float64
	FTPUser     string
	FTPPassword string
}

// New returns the fetcher for the scheme of baseURL.
func New(baseURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse base url")
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
			RateLimit:  rate.Limit(opts.RateLimit),
		}), nil
	case "ftp":
		return NewFTPFetcher(FTPOptions{
			Timeout:  opts.Timeout,
			User:     opts.FTPUser,
			Password: opts.FTPPassword,
		}), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
