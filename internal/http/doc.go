// Package http provides the HTTP transport used for chunked downloads.
//
// This package handles:
//   - Connection pooling for high parallelism
//   - Size probing of signed URLs with a one-byte range GET
//   - Range requests whose status is left to the caller to judge
//   - Connection-level retry with exponential backoff and jitter
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Learn the object size
//	info, err := client.Probe(ctx, signedURL)
//
//	// Download a range (inclusive bounds, like the Range header)
//	resp, err := client.GetRange(ctx, signedURL, startByte, endByte)
//	defer resp.Body.Close()
//	if resp.StatusCode != 206 { ... }
package http
