package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultConnectTimeout = 5 * time.Second
	keepAlive             = 30 * time.Second

	userAgentHeader      = "User-Agent"
	restyUserAgentPrefix = "go-resty/"
)

// Options configures the transfer behaviour of a RestyClient.
type Options struct {
	// ConnectTimeout bounds the TCP dial and TLS handshake together, as one budget.
	ConnectTimeout time.Duration
	// TotalTimeout bounds the whole request. Zero leaves the transfer phase unbounded.
	TotalTimeout time.Duration
	// FollowRedirects makes the client chase 3xx responses instead of returning them.
	FollowRedirects bool
}

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a RestyClient with explicit connect/total timeouts and redirect policy.
// Requests carry no headers beyond those passed to Get.
func NewRestyClient(opts Options) *RestyClient {
	c := newRestyBaseClient(opts)
	c.SetPreRequestHook(stripUserAgent)
	return &RestyClient{client: c}
}

// stripUserAgent blanks resty's default User-Agent; net/http omits an empty one.
// A User-Agent passed by the caller is kept.
func stripUserAgent(_ *resty.Client, r *http.Request) error {
	if strings.HasPrefix(r.Header.Get(userAgentHeader), restyUserAgentPrefix) {
		r.Header[userAgentHeader] = []string{""}
	}
	return nil
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(Options{ConnectTimeout: timeout, TotalTimeout: timeout, FollowRedirects: true})
}

// newRestyBaseClient creates a new resty.Client with the connect-only transport.
func newRestyBaseClient(opts Options) *resty.Client {
	c := resty.New()
	c.SetTransport(newTransport(opts.ConnectTimeout, nil))
	c.SetTimeout(opts.TotalTimeout)
	if !opts.FollowRedirects {
		c.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	}
	return c
}

// newTransport builds a transport whose deadlines only cover connection
// establishment. Responses are passed through undecoded, so no Accept-Encoding
// is negotiated.
func newTransport(connectTimeout time.Duration, tlsCfg *tls.Config) *http.Transport {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: keepAlive,
	}
	return &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		DialContext:        dialer.DialContext,
		DialTLSContext:     dialTLS(dialer, connectTimeout, tlsCfg),
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
		MaxIdleConns:       10,
		IdleConnTimeout:    90 * time.Second,
		// Only used for HTTPS through a proxy, where DialTLSContext is bypassed.
		TLSClientConfig:     tlsCfg,
		TLSHandshakeTimeout: connectTimeout,
	}
}

// dialTLS dials and completes the TLS handshake under a single connect deadline.
func dialTLS(dialer *net.Dialer, connectTimeout time.Duration, base *tls.Config) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		raw, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		cfg := &tls.Config{}
		if base != nil {
			cfg = base.Clone()
		}
		if cfg.ServerName == "" {
			host, _, splitErr := net.SplitHostPort(addr)
			if splitErr != nil {
				host = addr
			}
			cfg.ServerName = host
		}
		if len(cfg.NextProtos) == 0 {
			cfg.NextProtos = []string{"h2", "http/1.1"}
		}

		conn := tls.Client(raw, cfg)
		if err := conn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, err
		}
		return conn, nil
	}
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
// The entire body is buffered before returning.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Close releases idle connections held by the underlying transport.
func (r *RestyClient) Close() {
	if r == nil || r.client == nil {
		return
	}
	r.client.GetClient().CloseIdleConnections()
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte        { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int     { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Status() string      { return r.resp.Status() }
func (r *restyResponseAdapter) Header() http.Header { return r.resp.Header() }
