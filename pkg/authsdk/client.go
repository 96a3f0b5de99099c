package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client reads the public metadata of an IdP. Token flows are left to
// golang.org/x/oauth2, configured from the discovery document.
type Client struct {
	Issuer     string
	HTTPClient *http.Client
}

// NewClient returns a Client for issuer with a default timeout.
func NewClient(issuer string) *Client {
	return &Client{
		Issuer:     strings.TrimRight(issuer, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Discover fetches /.well-known/openid-configuration and checks that the
// document names the expected issuer.
func (c *Client) Discover(ctx context.Context) (*DiscoveryDocument, error) {
	var doc DiscoveryDocument
	if err := c.getJSON(ctx, c.Issuer+"/.well-known/openid-configuration", "", &doc); err != nil {
		return nil, err
	}
	if doc.Issuer != c.Issuer {
		return nil, fmt.Errorf("authsdk: issuer mismatch: got %q want %q", doc.Issuer, c.Issuer)
	}
	return &doc, nil
}

// JWKS fetches the signing keys.
func (c *Client) JWKS(ctx context.Context, doc *DiscoveryDocument) (*JWKS, error) {
	var set JWKS
	if err := c.getJSON(ctx, doc.JWKSURI, "", &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// UserInfo calls the userinfo endpoint with a bearer token.
func (c *Client) UserInfo(ctx context.Context, doc *DiscoveryDocument, accessToken string) (*UserInfoResponse, error) {
	var info UserInfoResponse
	if err := c.getJSON(ctx, doc.UserInfoEndpoint, accessToken, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) getJSON(ctx context.Context, url, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("authsdk: %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := ParseErrorResponse(resp.StatusCode, body); err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
