package scim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	csrfPath  = "/api/v1/csrf"
	usersPath = "/api/v1/scim2/Users/"

	customAuthHeader = "x-sap-sac-custom-auth"
	csrfTokenHeader  = "x-csrf-token"
)

// Endpoint describes how to reach the identity provider's SCIM API.
type Endpoint struct {
	TokenURL     string
	BaseURL      string
	ClientID     string
	ClientSecret string
}

// Client reads user resources from the provider. Every fetch runs the full
// auth chain: client-credentials token, CSRF handshake, then the Users read.
type Client struct {
	endpoint Endpoint
	hc       *http.Client
	log      *logrus.Entry
}

var _ IUserSource = (*Client)(nil)

func NewClient(endpoint Endpoint, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	endpoint.BaseURL = strings.TrimRight(endpoint.BaseURL, "/")
	return &Client{
		endpoint: endpoint,
		hc:       hc,
		log:      logrus.WithField("component", "scim"),
	}
}

func (c *Client) accessToken(ctx context.Context) (token string, err error) {
	var cfg = &clientcredentials.Config{
		ClientID:     c.endpoint.ClientID,
		ClientSecret: c.endpoint.ClientSecret,
		TokenURL:     c.endpoint.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)
	var t *oauth2.Token
	if t, err = cfg.Token(ctx); err != nil {
		err = fmt.Errorf("token endpoint: %w", err)
		return
	}
	c.log.Debug("access token acquired")
	token = t.AccessToken
	return
}

// handshake obtains the CSRF token and session cookies required by the API
// before state-bearing calls.
func (c *Client) handshake(ctx context.Context, token string) (csrf string, cookies []*http.Cookie, err error) {
	var rq *http.Request
	if rq, err = http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+csrfPath, nil); err != nil {
		return
	}
	rq.Header.Set("Authorization", "Bearer "+token)
	rq.Header.Set(customAuthHeader, "true")
	rq.Header.Set(csrfTokenHeader, "fetch")

	var rs *http.Response
	if rs, err = c.hc.Do(rq); err != nil {
		return
	}
	defer rs.Body.Close()
	if rs.StatusCode >= 300 {
		err = c.responseError(rq, rs)
		return
	}
	csrf = rs.Header.Get(csrfTokenHeader)
	if len(csrf) == 0 {
		err = fmt.Errorf("CSRF handshake: %q header missing from response", csrfTokenHeader)
		return
	}
	c.log.Debug("CSRF token acquired")
	cookies = rs.Cookies()
	return
}

// fetchResources issues the authenticated Users read and returns the
// Resources array. Exactly one request is made; if the upstream paginates
// internally only the first page is visible here.
func (c *Client) fetchResources(ctx context.Context) (resources []RawUser, err error) {
	var token string
	if token, err = c.accessToken(ctx); err != nil {
		return
	}
	var csrf string
	var cookies []*http.Cookie
	if csrf, cookies, err = c.handshake(ctx, token); err != nil {
		return
	}

	var rq *http.Request
	if rq, err = http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+usersPath, nil); err != nil {
		return
	}
	rq.Header.Set("Authorization", "Bearer "+token)
	rq.Header.Set(customAuthHeader, "true")
	rq.Header.Set(csrfTokenHeader, csrf)
	for _, cookie := range cookies {
		rq.AddCookie(cookie)
	}

	var rs *http.Response
	if rs, err = c.hc.Do(rq); err != nil {
		return
	}
	defer rs.Body.Close()
	if rs.StatusCode >= 300 {
		err = c.responseError(rq, rs)
		return
	}

	var payload struct {
		Resources []RawUser `json:"Resources"`
	}
	if err = json.NewDecoder(rs.Body).Decode(&payload); err != nil {
		err = fmt.Errorf("decode SCIM Users response: %w", err)
		return
	}
	c.log.WithField("count", len(payload.Resources)).Debug("users fetched")
	resources = payload.Resources
	return
}

func (c *Client) responseError(rq *http.Request, rs *http.Response) error {
	var scimUrl = rq.URL.String()
	if strings.HasPrefix(scimUrl, c.endpoint.BaseURL) {
		scimUrl = strings.Trim(scimUrl[len(c.endpoint.BaseURL):], "/")
	}
	var body, _ = io.ReadAll(rs.Body)
	if len(body) > 0 {
		return fmt.Errorf("%s SCIM %q error: %s", rq.Method, scimUrl, string(body))
	}
	return fmt.Errorf("%s SCIM %q error: status code %d", rq.Method, scimUrl, rs.StatusCode)
}

// FetchUsers returns the flattened read shape for every resource of the
// snapshot, emails and identifiers as delivered by the provider.
func (c *Client) FetchUsers(ctx context.Context) (rows []UserRow, err error) {
	var resources []RawUser
	if resources, err = c.fetchResources(ctx); err != nil {
		return
	}
	rows = make([]UserRow, 0, len(resources))
	for _, resource := range resources {
		rows = append(rows, FlattenUser(resource))
	}
	return
}

// FetchUsersRaw returns the Resources array unmodified.
func (c *Client) FetchUsersRaw(ctx context.Context) ([]RawUser, error) {
	return c.fetchResources(ctx)
}
