package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"
)

func (c *Client) MakeHTTPRequest(ctx context.Context, input *Request) (*Response, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var body io.Reader
	if input.Body != nil {
		requestBodyBytes, err := json.Marshal(input.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(requestBodyBytes)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, input.Method, input.URL, body)
	if err != nil {
		return nil, err
	}

	buildQueryParams(httpRequest, input.QueryParameters)

	if input.Headers != nil {
		httpRequest.Header = input.Headers.Clone()
	}
	if input.Body != nil && httpRequest.Header.Get("Content-Type") == "" {
		httpRequest.Header.Set("Content-Type", "application/json")
	}

	requestID, ok := RequestIDFromContext(ctx)
	if !ok {
		requestID = NewRequestID()
	}
	httpRequest.Header.Set(RequestIDHeaderKey, requestID)

	startTime := time.Now()

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, err
	}

	defer httpResponse.Body.Close()

	respBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResponse.StatusCode,
		Body:       respBody,
		Headers:    httpResponse.Header,
		Duration:   time.Since(startTime),
		RequestID:  requestID,
	}, nil
}

func buildQueryParams(httpRequest *http.Request, params url.Values) {
	if len(params) > 0 {
		requestQueryParams := httpRequest.URL.Query()

		for queryParamKey, queryParamValues := range params {
			for _, queryParamValue := range queryParamValues {
				requestQueryParams.Add(queryParamKey, queryParamValue)
			}
		}

		httpRequest.URL.RawQuery = requestQueryParams.Encode()
	}
}
