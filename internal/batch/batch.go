// Package batch expands a base request and a session pool into work items.
package batch

import (
	"errors"
	"strconv"
	"strings"

	"github.com/torosent/volley/internal/httpclient"
	"github.com/torosent/volley/internal/session"
)

// DefaultNamePrefix prefixes index-derived item names.
const DefaultNamePrefix = "req"

// ErrNameCollision is returned when an explicit name would be shared by
// several session tokens.
var ErrNameCollision = errors.New("--name can only be used with at most one session token; use --name-prefix for batches")

// WorkItem is one fully specified request. SessionCookie and SessionHeader
// name the injected secrets so they can be redacted in artifacts.
type WorkItem struct {
	Index         int
	Name          string
	Spec          httpclient.RequestSpec
	SessionCookie string
	SessionHeader string
}

// Options control item naming.
type Options struct {
	Name       string
	NamePrefix string
}

// Generate returns max(1, len(pool.Tokens)) items in pool order. Item i
// carries token i as the pool's cookie and/or header, overriding explicit
// values with the same name.
func Generate(spec httpclient.RequestSpec, pool session.Pool, opts Options) ([]WorkItem, error) {
	if err := pool.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(opts.Name)
	if name != "" && pool.Len() > 1 {
		return nil, ErrNameCollision
	}
	prefix := opts.NamePrefix
	if prefix == "" {
		prefix = DefaultNamePrefix
	}

	if pool.Empty() {
		return []WorkItem{{Index: 0, Name: itemName(name, prefix, 0), Spec: spec}}, nil
	}

	cookieName := strings.TrimSpace(pool.CookieName)
	headerName := strings.TrimSpace(pool.HeaderName)

	items := make([]WorkItem, 0, pool.Len())
	for i, token := range pool.Tokens {
		itemSpec := spec
		if cookieName != "" {
			itemSpec = itemSpec.WithCookie(cookieName, token)
		}
		if headerName != "" {
			itemSpec = itemSpec.WithHeader(headerName, token)
		}
		items = append(items, WorkItem{
			Index:         i,
			Name:          itemName(name, prefix, i),
			Spec:          itemSpec,
			SessionCookie: cookieName,
			SessionHeader: headerName,
		})
	}
	return items, nil
}

func itemName(explicit, prefix string, index int) string {
	if explicit != "" {
		return explicit
	}
	return prefix + strconv.Itoa(index)
}
