package gform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Submit posts value into the form's text field. The form host answers an
// accepted submission with 200 or a 302 back to the confirmation page; the
// redirect is not followed. Anything else is a rejection.
func (c *Client) Submit(ctx context.Context, submitURL string, fieldID int64, value string) error {
	form := url.Values{}
	form.Set(fmt.Sprintf("entry.%d", fieldID), value)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.post.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return fmt.Errorf("form host rejected submission: status %d", resp.StatusCode)
	}
	return nil
}
