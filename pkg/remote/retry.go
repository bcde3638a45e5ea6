package remote

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// retryDo issues a request built by makeReq up to attempts times,
// backing off exponentially from 500ms. Only transport failures and
// 429/5xx responses are retried; anything else is handed back
// immediately. makeReq is called per attempt so bodies are fresh.
func retryDo(ctx context.Context, hc *http.Client, log *zap.Logger, attempts int, makeReq func() (*http.Request, error)) (*http.Response, error) {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 500 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			log.Debug("retrying request", zap.Int("attempt", i+1), zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
		req, err := makeReq()
		if err != nil {
			return nil, err
		}
		resp, err := hc.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &httpStatusError{status: resp.StatusCode}
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return "server returned " + http.StatusText(e.status)
}
