package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	pathClients   = "/api/clients"
	pathClient    = "/api/clients/{id}"
	pathServer    = "/api/server"
	pathReconcile = "/api/reconcile"
	pathPasses    = "/api/passes"
	pathLogin     = "/api/login"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

type Client struct {
	resty *resty.Client
}

func New(baseURL, token string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetAuthToken(token).
		SetError(&apiError{})
	return &Client{resty: client}
}

func (c *Client) ListClients(ctx context.Context) ([]WGClient, error) {
	var out []WGClient
	resp, err := c.resty.R().SetContext(ctx).SetResult(&out).Get(pathClients)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetClient(ctx context.Context, id string) (WGClient, error) {
	var out WGClient
	resp, err := c.resty.R().SetContext(ctx).SetPathParam("id", id).SetResult(&out).Get(pathClient)
	if err := check(resp, err); err != nil {
		return WGClient{}, err
	}
	return out, nil
}

func (c *Client) CreateClient(ctx context.Context, in NewClient) (WGClient, error) {
	var out WGClient
	resp, err := c.resty.R().SetContext(ctx).SetBody(&in).SetResult(&out).Post(pathClients)
	if err := check(resp, err); err != nil {
		return WGClient{}, err
	}
	return out, nil
}

func (c *Client) UpdateClient(ctx context.Context, id string, patch ClientPatch) (WGClient, error) {
	var out WGClient
	resp, err := c.resty.R().SetContext(ctx).SetPathParam("id", id).SetBody(&patch).SetResult(&out).Patch(pathClient)
	if err := check(resp, err); err != nil {
		return WGClient{}, err
	}
	return out, nil
}

func (c *Client) RemoveClient(ctx context.Context, id string) error {
	resp, err := c.resty.R().SetContext(ctx).SetPathParam("id", id).Delete(pathClient)
	return check(resp, err)
}

func (c *Client) GetServer(ctx context.Context) (Server, error) {
	var out Server
	resp, err := c.resty.R().SetContext(ctx).SetResult(&out).Get(pathServer)
	if err := check(resp, err); err != nil {
		return Server{}, err
	}
	return out, nil
}

func (c *Client) UpdateServer(ctx context.Context, patch ServerPatch) (Server, error) {
	var out Server
	resp, err := c.resty.R().SetContext(ctx).SetBody(&patch).SetResult(&out).Patch(pathServer)
	if err := check(resp, err); err != nil {
		return Server{}, err
	}
	return out, nil
}

func (c *Client) Reconcile(ctx context.Context) (PassSummary, error) {
	var out PassSummary
	resp, err := c.resty.R().SetContext(ctx).SetResult(&out).Post(pathReconcile)
	if err := check(resp, err); err != nil {
		return PassSummary{}, err
	}
	return out, nil
}

func (c *Client) ListPasses(ctx context.Context, limit int) ([]Pass, error) {
	var out []Pass
	resp, err := c.resty.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		Get(pathPasses)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Login exchanges admin credentials for a bearer token. The client may be
// built without a token for this call.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post(pathLogin)
	if err := check(resp, err); err != nil {
		return "", err
	}
	return out.Token, nil
}

// apiError is the problem document the server returns on failure.
type apiError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, detail(resp))
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %s", resp.Status(), detail(resp))
	}
	return nil
}

func detail(resp *resty.Response) string {
	if e, ok := resp.Error().(*apiError); ok && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(resp.String())
}
