package room

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
	rendezvous "github.com/dgryski/go-rendezvous"
)

// ErrNoEndpoints is returned when a directory is built without any actor endpoint.
var ErrNoEndpoints = errors.New("no actor endpoints configured")

// Directory maps a logical room name to the one actor endpoint that owns it.
// The mapping depends only on the endpoint set, so every process configured
// with the same endpoints resolves a name to the same actor.
type Directory struct {
	ring      *rendezvous.Rendezvous
	endpoints map[string]*url.URL
}

// NewDirectory parses the endpoint URLs and builds the directory.
func NewDirectory(endpoints []string) (*Directory, error) {
	parsed := make(map[string]*url.URL, len(endpoints))
	keys := make([]string, 0, len(endpoints))
	for _, raw := range endpoints {
		raw = strings.TrimRight(strings.TrimSpace(raw), "/")
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("endpoint %q: scheme must be http or https", raw)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("endpoint %q: missing host", raw)
		}
		key := u.String()
		if _, dup := parsed[key]; dup {
			continue
		}
		parsed[key] = u
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, ErrNoEndpoints
	}

	return &Directory{
		ring:      rendezvous.New(keys, xxhash.Sum64String),
		endpoints: parsed,
	}, nil
}

// Lookup returns the endpoint owning name. The returned URL must not be modified.
func (d *Directory) Lookup(name string) (*url.URL, error) {
	key := d.ring.Lookup(name)
	u, ok := d.endpoints[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, name)
	}
	return u, nil
}
