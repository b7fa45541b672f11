package gform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var formIDPattern = regexp.MustCompile(`/d/e/([a-zA-Z0-9_-]+)(?:/|$)`)

// Resolve turns an admin-supplied form link into the canonical view and
// submit endpoints. A shortened forms.gle link costs one redirect round trip;
// a link that already carries the form id resolves without any network call,
// so resolving an already-canonical view URL returns it unchanged.
func (c *Client) Resolve(ctx context.Context, rawLink string) (string, string, error) {
	link := strings.TrimSpace(rawLink)
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", ErrInvalidLink
	}

	switch u.Host {
	case c.viewHost:
		// full-form URL, form id extractable directly
	case c.shortHost:
		link, err = c.expand(ctx, link)
		if err != nil {
			return "", "", err
		}
	default:
		return "", "", ErrInvalidLink
	}

	m := formIDPattern.FindStringSubmatch(link)
	if m == nil {
		return "", "", fmt.Errorf("%w: no form id in %q", ErrResolutionFailed, link)
	}
	base := formBase + m[1]
	return base + viewSuffix, base + submitSuffix, nil
}

// expand follows a shortened link's redirect chain and returns the final URL.
func (c *Client) expand(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", ErrInvalidLink
	}
	resp, err := c.fetch.Do(req)
	if err != nil {
		if errors.Is(err, errTooManyRedirects) {
			return "", errTooManyRedirects
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: form does not exist", ErrResolutionFailed)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", ErrResolutionFailed, resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}
