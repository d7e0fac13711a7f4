package types

import (
	"net/http"
	"time"
)

// Response is the outcome of a single fetch attempt.
type Response struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after any redirects.
	FinalURL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the decoded response body.
	Body []byte

	// Duration is how long the attempt took.
	Duration time.Duration

	// FetchedAt is when the response was received.
	FetchedAt time.Time
}

// NewResponse creates a Response from an http.Response and its decoded body.
func NewResponse(url string, httpResp *http.Response, body []byte, duration time.Duration) *Response {
	final := url
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		final = httpResp.Request.URL.String()
	}
	return &Response{
		URL:        url,
		FinalURL:   final,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Duration:   duration,
		FetchedAt:  time.Now().UTC(),
	}
}

// NewBrowserResponse creates a Response from headless browser output.
func NewBrowserResponse(url string, statusCode int, body []byte, finalURL string, duration time.Duration) *Response {
	return &Response{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       body,
		Duration:   duration,
		FetchedAt:  time.Now().UTC(),
	}
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
