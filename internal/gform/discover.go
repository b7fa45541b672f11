package gform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

var payloadPattern = regexp.MustCompile(`(?s)FB_PUBLIC_LOAD_DATA_ = (.*?);`)

// Page payloads are form metadata, well under this.
const maxPayloadBytes = 4 << 20

// DiscoverNameField fetches the form's view page and returns the entry id of
// its first free-text question. The page embeds a FB_PUBLIC_LOAD_DATA_ JSON
// structure: arrays nested to no fixed depth, in which a text answer slot is
// a three-element array [entryID, null, ...]. The first match in depth-first
// order wins. Runs once per form configuration, never on the marking path.
func (c *Client) DiscoverNameField(ctx context.Context, viewURL string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, viewURL, nil)
	if err != nil {
		return 0, fmt.Errorf("building view request: %w", err)
	}
	resp, err := c.fetch.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrMalformedPayload, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	m := payloadPattern.FindSubmatch(body)
	if m == nil {
		return 0, ErrMalformedPayload
	}
	var data any
	if err := json.Unmarshal(m[1], &data); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	id, ok := findTextField(data)
	if !ok {
		return 0, ErrNoTextField
	}
	return id, nil
}

// findTextField walks the decoded payload with an explicit stack, depth
// first, and returns the first text-field entry id. Children are pushed in
// reverse so pop order matches recursion order. Nodes that are not arrays
// (strings, numbers, objects) are skipped, never an error.
func findTextField(root any) (int64, bool) {
	stack := []any{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		arr, ok := node.([]any)
		if !ok {
			continue
		}
		if id, ok := textFieldID(arr); ok {
			return id, true
		}
		for i := len(arr) - 1; i >= 0; i-- {
			stack = append(stack, arr[i])
		}
	}
	return 0, false
}

// textFieldID recognizes a text answer slot: exactly three elements, null in
// the middle, numeric entry id first.
func textFieldID(arr []any) (int64, bool) {
	if len(arr) != 3 || arr[1] != nil {
		return 0, false
	}
	id, ok := arr[0].(float64)
	if !ok {
		return 0, false
	}
	return int64(id), true
}
