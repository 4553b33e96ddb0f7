// Package download fetches remote objects in parallel byte ranges and
// reassembles them into local files.
//
// This package coordinates between a [location.Provider], which keeps a
// signed URL fresh, and a single writer that owns the destination file.
// Memory stays bounded because the two stages only talk through bounded
// [Queue]s.
//
// # Usage
//
// The main entry point is the DownloadFiles function:
//
//	err := download.DownloadFiles(ctx, resolver, []download.Request{
//	    {FileHandleID: "123", ObjectID: "syn42", ObjectType: "FileEntity", Destination: "/tmp/a.bin"},
//	}, download.Options{
//	    Workers:  8,
//	    Reporter: reporter,
//	})
//
// # Pipeline
//
// For every request the coordinator probes the object size, feeds [Plan]'s
// ranges into a range queue and starts Options.Workers fetchers plus one
// writer:
//
//	Plan ──▶ range queue ──▶ fetcher × N ──▶ data queue ──▶ writer ──▶ file
//
// Fetchers re-resolve the URL before every attempt and retry non-206
// responses up to Options.MaxRetries attempts. Payloads carry their absolute
// offset, so the writer does not care in which order they arrive.
//
// # Failure
//
// The first failing fetcher or writer cancels every other goroutine of the
// transfer. The batch stops at the first failed request.
package download
