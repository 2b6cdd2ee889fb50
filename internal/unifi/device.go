package unifi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
)

// IDField is the device document key holding the device identifier.
const IDField = "_id"

// bodyExcerpt is how many characters of a response body are logged.
const bodyExcerpt = 300

// DevicePath returns the REST path of a device document.
func DevicePath(site, deviceID string) string {
	return fmt.Sprintf("/proxy/network/api/s/%s/rest/device/%s",
		url.PathEscape(site), url.PathEscape(deviceID))
}

// PutDevice replaces the full configuration document of deviceID on
// site. The controller expects a complete document, not a patch. The
// document's _id is set to deviceID in the request body; doc itself is
// left untouched.
func (s *Session) PutDevice(ctx context.Context, site, deviceID string, doc map[string]any) error {
	body := maps.Clone(doc)
	if body == nil {
		body = make(map[string]any, 1)
	}
	body[IDField] = deviceID

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode device document: %w", err)
	}

	u := s.baseURL + DevicePath(site, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("PUT %s: %w", u, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	text := string(data)

	s.logger.Info("device update",
		"method", http.MethodPut,
		"url", u,
		"status", resp.StatusCode,
		"response", truncate(text, bodyExcerpt),
	)
	s.logger.Log(ctx, slog.Level(-8), "device update wire", // config.LevelTrace
		"request", string(payload),
		"response", text,
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return &HTTPError{
			Method:     http.MethodPut,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       text,
		}
	}
	return nil
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
