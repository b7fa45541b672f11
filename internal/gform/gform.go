// Package gform talks to the Google Forms host: resolving sharing links into
// the canonical endpoint pair, discovering the form's free-text name field,
// and submitting values into it.
package gform

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	shortLinkHost = "forms.gle"
	formHost      = "docs.google.com"
	formBase      = "https://docs.google.com/forms/d/e/"
	viewSuffix    = "/viewform"
	submitSuffix  = "/formResponse"

	// Redirect hop cap when expanding shortened links; guards against loops.
	maxRedirectHops = 5
)

var (
	// ErrInvalidLink: the input does not match any recognized form-link shape.
	ErrInvalidLink = errors.New("not a recognized Google Form link")

	// ErrResolutionFailed: the link looked right but did not lead to a usable
	// form (404, private, redirect loop, or no form id in the final URL).
	ErrResolutionFailed = errors.New("could not resolve the form link")

	// ErrNoTextField: the form has no free-text question to put a name into.
	// Not retryable; the admin needs a different form.
	ErrNoTextField = errors.New("form has no free-text field")

	// ErrMalformedPayload: the view page did not carry the expected embedded
	// field data (commonly a private or restricted form).
	ErrMalformedPayload = errors.New("form page missing embedded field data")

	// ErrNetwork marks transient transport failures; callers may retry.
	ErrNetwork = errors.New("form host unreachable")
)

var errTooManyRedirects = fmt.Errorf("%w: redirect limit exceeded", ErrResolutionFailed)

// Client performs all form-host HTTP. Construct with New; the zero value has
// no HTTP clients.
type Client struct {
	// follows redirects, capped; used for link expansion and page fetches
	fetch *http.Client
	// never follows redirects; a 302 from formResponse is the success signal
	post *http.Client

	shortHost string
	viewHost  string
}

func New() *Client {
	return &Client{
		fetch: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirectHops {
					return errTooManyRedirects
				}
				return nil
			},
		},
		post: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		shortHost: shortLinkHost,
		viewHost:  formHost,
	}
}
