package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

var ErrBodyTooLarge = errors.New("response body too large")

type HTTPClient struct {
	client *http.Client
}

func NewHTTPClient() IClient {
	return NewHTTPClientWithTimeout(defaultTimeout)
}

func NewHTTPClientWithTimeout(timeout time.Duration) IClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error {
	if requestParam == nil {
		return errors.New("request param is nil")
	}

	if requestParam.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestParam.Timeout)
		defer cancel()
	}

	body, err := requestBody(requestParam.Body)
	if err != nil {
		return fmt.Errorf("build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, requestParam.Method, requestParam.RequestURI, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	for k, v := range requestParam.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var reader io.Reader = resp.Body
	if requestParam.MaxBodyBytes > 0 {
		// 多读一个字节用来判断是否超限
		reader = io.LimitReader(resp.Body, requestParam.MaxBodyBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if requestParam.MaxBodyBytes > 0 && int64(len(data)) > requestParam.MaxBodyBytes {
		return fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, requestParam.MaxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, string(data))
	}

	requestParam.ContentType = resp.Header.Get("Content-Type")

	switch out := requestParam.Response.(type) {
	case nil:
	case *[]byte:
		*out = data
	default:
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func requestBody(body interface{}) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case io.Reader:
		return b, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return bytes.NewReader([]byte(b)), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}
