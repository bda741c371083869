package httpds

import (
	"context"
	"io"
)

// URL is a datasource that downloads a dataset with a GET request.
type URL struct {
	client *Client
	url    string
}

// NewURL binds a Client to a dataset URL.
func NewURL(c *Client, rawURL string) *URL { return &URL{client: c, url: rawURL} }

// Name returns the file name implied by the URL path.
func (u *URL) Name() string { return FilenameFromURL(u.url) }

// Open downloads the dataset. A status that is still failing after the retry
// policy comes back as *StatusError.
func (u *URL) Open(ctx context.Context) (io.ReadCloser, error) {
	return u.client.Fetch(ctx, u.url)
}
