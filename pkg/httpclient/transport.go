package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// Transport adapts a Doer to http.RoundTripper so SDKs that take an
// *http.Client still go through the retry and breaker chain.
type Transport struct {
	Doer Doer
}

// RoundTrip executes req through the Doer. A 5xx turned into a *StatusError
// by the breaker is rebuilt as a response so the caller can decode its body.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.Doer.Do(req.Context(), req)
	if err == nil {
		return resp, nil
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return nil, err
	}

	header := statusErr.Header
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        http.StatusText(statusErr.StatusCode),
		StatusCode:    statusErr.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(statusErr.Body)),
		ContentLength: int64(len(statusErr.Body)),
		Request:       req,
	}, nil
}

// NewHTTPClient returns an *http.Client whose transport is doer.
func NewHTTPClient(doer Doer) *http.Client {
	return &http.Client{Transport: &Transport{Doer: doer}}
}
