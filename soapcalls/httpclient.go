package soapcalls

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	soapHTTPClientTimeout         = 20 * time.Second
	soapHTTPDialTimeout           = 5 * time.Second
	soapHTTPKeepAlive             = 30 * time.Second
	soapHTTPResponseHeaderTimeout = 10 * time.Second
	soapHTTPIdleConnTimeout       = 90 * time.Second
	soapRetryWaitMin              = 100 * time.Millisecond
	soapRetryWaitMax              = time.Second
	soapRetryMax                  = 2
)

var soapHTTPTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   soapHTTPDialTimeout,
		KeepAlive: soapHTTPKeepAlive,
	}).DialContext,
	ResponseHeaderTimeout: soapHTTPResponseHeaderTimeout,
	IdleConnTimeout:       soapHTTPIdleConnTimeout,
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   soapHTTPClientTimeout,
		Transport: soapHTTPTransport,
	}
}

func newRetryableHTTPClient(retryMax int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = soapRetryWaitMin
	retryClient.RetryWaitMax = soapRetryWaitMax
	retryClient.Logger = nil
	retryClient.HTTPClient = newHTTPClient()
	retryClient.CheckRetry = soapRetryPolicy

	return retryClient.StandardClient()
}

// soapRetryPolicy retries connection errors and gateway style failures. A
// 500 from a media renderer carries a SOAP fault, so it is returned as is.
func soapRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusInternalServerError {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
