package feeds

import (
	"context"
	"math"
	"time"

	"github.com/parnurzeal/gorequest"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

var clientLogger = zap.L().Sugar()

// FetchURL returns HTTP response body with retry. Retries back off
// quadratically; ctx cancellation cuts the backoff wait short and the
// final error is the last fetch failure.
func FetchURL(ctx context.Context, url, apikey string, timeout time.Duration, retry int) (res []byte, err error) {
	for i := 0; i <= retry; i++ {
		if i > 0 {
			wait := math.Pow(float64(i), 2)
			clientLogger.Infof("retry %s after %.0f seconds", url, wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(wait) * time.Second):
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err = fetchURL(url, apikey, timeout)
		if err == nil {
			return res, nil
		}
	}
	return nil, xerrors.Errorf("failed to fetch URL: %w", err)
}

func fetchURL(url, apikey string, timeout time.Duration) ([]byte, error) {
	req := gorequest.New().Timeout(timeout).Get(url)
	if apikey != "" {
		req.Header.Add("apiKey", apikey)
	}
	resp, body, errs := req.Type("text").EndBytes()
	if len(errs) > 0 {
		return nil, xerrors.Errorf("HTTP error. url: %s, err: %w", url, errs[0])
	}
	if resp.StatusCode != 200 {
		return nil, xerrors.Errorf("HTTP error. status code: %d, url: %s", resp.StatusCode, url)
	}
	return body, nil
}
