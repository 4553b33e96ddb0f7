package resolver

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/ligustah/rangeget/pkg/location"
)

// Static serves fixed locations keyed by file handle id. It suits links that
// were signed elsewhere; once such a link expires every refresh returns it
// unchanged.
type Static map[string]location.Location

// StaticURLs builds a Static resolver where each URL is its own file handle
// id and the file name is the last element of the URL path.
func StaticURLs(urls ...string) (Static, error) {
	s := make(Static, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported URL scheme %q in %q", u.Scheme, raw)
		}
		name := path.Base(u.Path)
		if name == "/" || name == "." {
			name = u.Host
		}
		s[raw] = location.Location{FileName: name, URL: raw}
	}
	return s, nil
}

// ResolveDownloadLocation implements location.Resolver.
func (s Static) ResolveDownloadLocation(_ context.Context, target location.Target) (location.Location, error) {
	loc, ok := s[target.FileHandleID]
	if !ok {
		return location.Location{}, fmt.Errorf("%w: file handle %s", ErrObjectNotFound, target.FileHandleID)
	}
	return loc, nil
}
