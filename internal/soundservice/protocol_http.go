package soundservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPDirective carries the URL to fetch. The rate limiter is not part
// of the directive: it lives on HTTPProtocol and is shared by every
// request made through that protocol instance.
type HTTPDirective struct {
	URL string
}

// HTTPProtocol opens a streaming GET against a directive's URL, for the
// "HTTP/HTTPS/FTP URL" loading shape named in spec.md §4.6. FTP is not
// implemented; only http/https schemes are accepted.
type HTTPProtocol struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPProtocol constructs the protocol with a 10-second request
// timeout and a token-bucket limiter bounding sustained request rate,
// matching the teacher's http.Client construction and the token-bucket
// shape used for its own rate limiters.
func NewHTTPProtocol(requestsPerSecond float64, burst int) *HTTPProtocol {
	return &HTTPProtocol{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (p *HTTPProtocol) OpenURI(name string, directive Directive) (io.ReadCloser, error) {
	d, ok := directive.(HTTPDirective)
	if !ok || d.URL == "" {
		return nil, errors.New("soundservice: http protocol requires an HTTPDirective with a URL")
	}
	if err := p.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("soundservice: build request for %q: %w", name, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("soundservice: fetch %q: %w", d.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("soundservice: fetch %q: status %d", d.URL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (HTTPProtocol) Suffix(directive Directive) string {
	if d, ok := directive.(HTTPDirective); ok {
		return d.URL
	}
	return ""
}
