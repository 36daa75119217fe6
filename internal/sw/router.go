package sw

import (
	"net/http"
	"net/url"
	"strings"
)

// Route is the handler class a request is dispatched to.
type Route int

const (
	// RoutePassthrough requests go to the network untouched.
	RoutePassthrough Route = iota
	// RouteData requests are answered by the DataHandler.
	RouteData
	// RouteAsset requests are answered by the AssetHandler.
	RouteAsset
)

func (r Route) String() string {
	switch r {
	case RouteData:
		return "data"
	case RouteAsset:
		return "asset"
	default:
		return "passthrough"
	}
}

// RouterConfig lists the origins the Router recognizes.
type RouterConfig struct {
	AppOrigin *url.URL
	APIOrigin *url.URL
	// Bypass holds URL substrings that always go straight to the network.
	Bypass []string
}

// Router intercepts every outgoing request of the app and dispatches it by
// origin. It implements http.RoundTripper.
type Router struct {
	cfg     RouterConfig
	data    http.RoundTripper
	assets  *AssetHandler
	network http.RoundTripper
	logger  Logger
	ids     IDGenerator
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig, data *DataHandler, assets *AssetHandler, network http.RoundTripper, logger Logger, ids IDGenerator) *Router {
	return &Router{
		cfg:     cfg,
		data:    data,
		assets:  assets,
		network: network,
		logger:  logger,
		ids:     ids,
	}
}

// Classify returns the route for an absolute URL.
func (r *Router) Classify(u *url.URL) Route {
	raw := u.String()
	for _, pattern := range r.cfg.Bypass {
		if pattern != "" && strings.Contains(raw, pattern) {
			return RoutePassthrough
		}
	}
	if r.cfg.APIOrigin != nil && sameHost(u, r.cfg.APIOrigin) {
		return RouteData
	}
	if r.cfg.AppOrigin != nil && sameHost(u, r.cfg.AppOrigin) {
		return RouteAsset
	}
	return RoutePassthrough
}

func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Host, b.Host)
}

// RoundTrip implements http.RoundTripper. Relative request URLs are
// resolved against the app origin.
func (r *Router) RoundTrip(req *http.Request) (*http.Response, error) {
	if !req.URL.IsAbs() && r.cfg.AppOrigin != nil {
		resolved := req.Clone(req.Context())
		resolved.URL = r.cfg.AppOrigin.ResolveReference(req.URL)
		resolved.Host = resolved.URL.Host
		resolved.RequestURI = ""
		req = resolved
	}

	route := r.Classify(req.URL)
	id := r.ids.New()
	r.logger.Debug("routing request", "request_id", id, "method", req.Method, "url", req.URL.String(), "route", route.String())

	var (
		resp *http.Response
		err  error
	)
	switch route {
	case RouteData:
		resp, err = r.data.RoundTrip(req)
	case RouteAsset:
		resp, err = r.assets.Serve(req)
	default:
		resp, err = r.network.RoundTrip(req)
	}
	if err != nil {
		r.logger.Warn("request failed", "request_id", id, "route", route.String(), "error", err)
		return nil, err
	}
	return resp, nil
}
