package handlers

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// HTTPHandler is the "http" action category: it performs a single
// outbound HTTP call with the node's resolved config and reports the
// response status, mirroring the shape every HTTP-call action node needs
// (method, url, headers, body) without committing to any particular API.
type HTTPHandler struct {
	Client *resty.Client
}

// NewHTTPHandler returns an ActionHandler backed by client.
func NewHTTPHandler(client *resty.Client) *HTTPHandler {
	return &HTTPHandler{Client: client}
}

func (h *HTTPHandler) Run(ctx context.Context, config map[string]any, _ map[string]any) (any, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http handler: config.url is required")
	}
	method, _ := config["method"].(string)
	if method == "" {
		method = "GET"
	}
	req := h.Client.R().SetContext(ctx)
	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.SetHeader(k, s)
			}
		}
	}
	if body, ok := config["body"]; ok {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("http handler: request failed: %w", err)
	}
	status := "SUCCESS"
	if resp.IsError() {
		status = "FAILED"
	}
	return map[string]any{
		"status":      status,
		"status_code": resp.StatusCode(),
		"body":        string(resp.Body()),
	}, nil
}
