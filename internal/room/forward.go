package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// InternalPrefix is where an actor host serves its rooms.
const InternalPrefix = "/internal/rooms"

// ErrUpstreamUnavailable is reported when the room actor cannot be reached.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

type targetKey struct{}

// Forwarder relays room requests to the actor that owns the room. Bodies are
// streamed in both directions and hop-by-hop headers are dropped. There is
// no local fallback: when the actor is unreachable the request fails with 502.
type Forwarder struct {
	dir   *Directory
	name  string
	proxy *httputil.ReverseProxy
	log   *zerolog.Logger
}

// NewForwarder builds a forwarder for the logical room name.
func NewForwarder(dir *Directory, name string, logger *zerolog.Logger) *Forwarder {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	f := &Forwarder{
		dir:  dir,
		name: name,
		log:  logger,
	}
	f.proxy = &httputil.ReverseProxy{
		Rewrite:       f.rewrite,
		FlushInterval: -1,
		ErrorHandler:  f.handleError,
	}
	return f
}

// Handler forwards requests to <endpoint>/internal/rooms/<name>/<suffix>.
func (f *Forwarder) Handler(suffix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint, err := f.dir.Lookup(f.name)
		if err != nil {
			f.handleError(w, r, err)
			return
		}
		target := endpoint.JoinPath(InternalPrefix, f.name, suffix)
		// JoinPath leaves the path relative when the endpoint has no path.
		target.Path = rooted(target.Path)
		target.RawPath = rooted(target.RawPath)
		ctx := context.WithValue(r.Context(), targetKey{}, target)
		f.proxy.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (f *Forwarder) rewrite(pr *httputil.ProxyRequest) {
	target, _ := pr.In.Context().Value(targetKey{}).(*url.URL)
	if target == nil {
		return
	}
	pr.Out.URL.Scheme = target.Scheme
	pr.Out.URL.Host = target.Host
	pr.Out.URL.Path = target.Path
	pr.Out.URL.RawPath = target.RawPath
	pr.Out.Host = target.Host
	pr.SetXForwarded()
}

func rooted(p string) string {
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// Client went away; nobody is left to answer.
		f.log.Debug().Str("room", f.name).Str("path", r.URL.Path).Msg("forwarded request cancelled")
		return
	}

	f.log.Error().Err(err).Str("room", f.name).Str("path", r.URL.Path).Msg("room actor unreachable")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(proto.ErrorResponse{
		Error: fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err).Error(),
		Code:  core.ErrCodeUpstreamUnavailable,
	})
}
