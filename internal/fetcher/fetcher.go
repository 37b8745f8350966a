// Package fetcher implements the Network Fetcher: an HTTPS GET against
// a {z}/{x}/{y} URL template, grounded on
// other_examples/olablt-gio-tiles__tilemanager.go's OSMTileProvider.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tilecore/internal/tilecoord"
)

// Kind classifies how a fetch failed.
type Kind uint8

const (
	KindHTTP Kind = iota
	KindNetwork
	KindTimeout
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the typed FetchError of spec §4.4.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("fetcher: http status %d", e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetcher: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetcher: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher retrieves raw tile bytes from a remote tile server. No
// retries: a 4xx/5xx status or any transport error is a terminal
// failure for this attempt (spec §4.4).
type Fetcher interface {
	Fetch(ctx context.Context, coord tilecoord.Coord) ([]byte, error)
}

const placeholderZ, placeholderX, placeholderY = "{z}", "{x}", "{y}"

// HTTPFetcher is the production Fetcher: net/http.Client against a URL
// template with literal {z}/{x}/{y} substitution.
type HTTPFetcher struct {
	client   *http.Client
	template string
}

// New validates template (it must contain {z}, {x}, and {y}) and
// returns an HTTPFetcher using client, or http.DefaultClient if client
// is nil.
func New(template string, client *http.Client) (*HTTPFetcher, error) {
	if !strings.Contains(template, placeholderZ) ||
		!strings.Contains(template, placeholderX) ||
		!strings.Contains(template, placeholderY) {
		return nil, errors.New("fetcher: url template must contain {z}, {x}, and {y}")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, template: template}, nil
}

func (f *HTTPFetcher) url(coord tilecoord.Coord) string {
	r := strings.NewReplacer(
		placeholderZ, strconv.FormatUint(uint64(coord.Z), 10),
		placeholderX, strconv.FormatUint(uint64(coord.X), 10),
		placeholderY, strconv.FormatUint(uint64(coord.Y), 10),
	)
	return r.Replace(f.template)
}

// Fetch performs the GET. It never retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, coord tilecoord.Coord) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(coord), nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &Error{Kind: KindCancelled, Err: err}
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTP, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	return body, nil
}
