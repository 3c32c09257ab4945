package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/samsarahq/go/oops"
)

// HTTPClient is the standard HTTP transport: one POST per operation with a
// JSON {query, variables} body, following the conventional GraphQL-over-HTTP
// request/response envelope shape.
type HTTPClient struct {
	URL        string
	Client     *http.Client
	HeaderFunc func() map[string]string
}

type httpRequestBody struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type httpResponseBody struct {
	Data   map[string]interface{} `json:"data"`
	Errors []struct {
		Message string   `json:"message"`
		Path    []string `json:"path"`
	} `json:"errors"`
}

// Execute implements HTTP.
func (c *HTTPClient) Execute(ctx context.Context, req Request) (Response, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(httpRequestBody{Query: req.Query, Variables: req.Variables})
	if err != nil {
		return Response{}, oops.Wrapf(err, "encoding request body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, oops.Wrapf(err, "building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if c.HeaderFunc != nil {
		for k, v := range c.HeaderFunc() {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, oops.Wrapf(err, "reading response body")
	}
	if resp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("transport: http status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded httpResponseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Response{}, oops.Wrapf(err, "decoding response body")
	}

	out := Response{Data: decoded.Data}
	for _, e := range decoded.Errors {
		out.Errors = append(out.Errors, GraphQLError{Message: e.Message, Path: e.Path})
	}
	return out, nil
}
