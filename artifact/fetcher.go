package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultURLTemplate resolves a Google Drive file ID to its download URL.
	DefaultURLTemplate = "https://drive.google.com/uc?export=download&id=%s"
	// DefaultTimeout bounds a whole download, body included.
	DefaultTimeout = 5 * time.Minute

	// maxWarningPage caps how much of an HTML interstitial is read.
	maxWarningPage = 1 << 20
)

// Fetcher streams the artifact identified by locator into w.
type Fetcher interface {
	// Fetch returns the number of bytes written to w.
	Fetch(ctx context.Context, locator string, w io.Writer) (int64, error)
}

// FetcherConfig configures a DriveFetcher.
type FetcherConfig struct {
	// URLTemplate has one %s verb for the locator (DefaultURLTemplate when empty).
	URLTemplate string
	// Timeout bounds each request including its body (DefaultTimeout when zero).
	Timeout time.Duration
	// Transport replaces the default HTTP transport when set.
	Transport http.RoundTripper
}

// DriveFetcher downloads files shared through Google Drive.
//
// Large files are answered with a "can't scan for viruses" page instead of
// the file. The fetcher picks the confirmation token out of that page (or its
// download_warning cookie) and asks once more with it.
type DriveFetcher struct {
	client      *resty.Client
	urlTemplate string
	logger      *zap.Logger
}

var (
	confirmInput = regexp.MustCompile(`name="confirm"\s+value="([^"]+)"`)
	confirmParam = regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`)
	uuidInput    = regexp.MustCompile(`name="uuid"\s+value="([^"]+)"`)
)

// NewDriveFetcher returns a fetcher with a single-attempt resty client.
//
// Arguments:
//   - cfg: The fetcher configuration.
//   - logger: Receives progress lines.
//
// Returns:
//   - *DriveFetcher: The fetcher.
func NewDriveFetcher(cfg FetcherConfig, logger *zap.Logger) *DriveFetcher {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetLogger(logger.Sugar()).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}

	return &DriveFetcher{
		client:      client,
		urlTemplate: cfg.URLTemplate,
		logger:      logger,
	}
}

// URL resolves a locator. Locators that already are http(s) URLs are used
// unchanged.
func (f *DriveFetcher) URL(locator string) string {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator
	}
	return fmt.Sprintf(f.urlTemplate, locator)
}

// Fetch implements Fetcher.
func (f *DriveFetcher) Fetch(ctx context.Context, locator string, w io.Writer) (int64, error) {
	url := f.URL(locator)

	resp, err := f.get(ctx, url, nil)
	if err != nil {
		return 0, err
	}

	if isHTML(resp) {
		page, err := io.ReadAll(io.LimitReader(resp.RawBody(), maxWarningPage))
		resp.RawBody().Close()
		if err != nil {
			return 0, errors.Wrap(err, "failed to read warning page")
		}

		params := confirmParams(resp, page)
		if params == nil {
			return 0, errors.Errorf("%s returned an HTML page instead of the file", url)
		}
		f.logger.Debug("confirming download", zap.String("url", url))

		if resp, err = f.get(ctx, url, params); err != nil {
			return 0, err
		}
		if isHTML(resp) {
			resp.RawBody().Close()
			return 0, errors.Errorf("%s still returned an HTML page after confirmation", url)
		}
	}

	body := resp.RawBody()
	defer body.Close()

	n, err := io.Copy(w, NewProgressReader(body, locator, f.logger))
	if err != nil {
		return n, errors.Wrap(err, "failed to read response body")
	}
	return n, nil
}

// get issues one GET whose body the caller must close.
func (f *DriveFetcher) get(ctx context.Context, url string, params map[string]string) (*resty.Response, error) {
	req := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(url)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		return nil, errors.Wrapf(err, "couldn't connect to %s", url)
	}
	if resp.IsError() {
		resp.RawBody().Close()
		return nil, errors.Errorf("%s: unexpected status %s", url, resp.Status())
	}
	return resp, nil
}

func isHTML(resp *resty.Response) bool {
	return strings.HasPrefix(strings.ToLower(resp.Header().Get("Content-Type")), "text/html")
}

// confirmParams extracts the query parameters that acknowledge the virus
// scan warning, or nil if the page is not such a warning.
func confirmParams(resp *resty.Response, page []byte) map[string]string {
	var token string
	for _, c := range resp.Cookies() {
		if strings.HasPrefix(c.Name, "download_warning") {
			token = c.Value
			break
		}
	}
	if token == "" {
		if m := confirmInput.FindSubmatch(page); m != nil {
			token = string(m[1])
		} else if m := confirmParam.FindSubmatch(page); m != nil {
			token = string(m[1])
		}
	}
	if token == "" {
		return nil
	}

	params := map[string]string{"confirm": token}
	if m := uuidInput.FindSubmatch(page); m != nil {
		params["uuid"] = string(m[1])
	}
	return params
}
