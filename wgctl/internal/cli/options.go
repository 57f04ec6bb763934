package cli

import (
	"errors"
	"os"
	"strings"

	"wg-lifecycle/wgctl/internal/client"
)

const DefaultURL = "http://127.0.0.1:51821"

// Options are the connection flags shared by every command. Empty values
// fall back to WGCTL_URL and WGCTL_TOKEN.
type Options struct {
	URL   string
	Token string
}

func (o *Options) baseURL() string {
	url := strings.TrimSpace(o.URL)
	if url == "" {
		url = os.Getenv("WGCTL_URL")
	}
	if url == "" {
		url = DefaultURL
	}
	return url
}

func (o *Options) client() (*client.Client, error) {
	token := strings.TrimSpace(o.Token)
	if token == "" {
		token = os.Getenv("WGCTL_TOKEN")
	}
	if token == "" {
		return nil, errors.New("token is required (--token or WGCTL_TOKEN)")
	}
	return client.New(o.baseURL(), token), nil
}
