// Package config defines configuration structures for the rangeget CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (RANGEGET_ prefix)
//   - YAML configuration file
//
// Flags override the environment, which overrides the file.
//
// # Example
//
//	workers: 16
//	part_size: 16MiB
//	parallel_requests: 2
//	progress: bar
//	retry:
//	  attempts: 5
//	  backoff: 1s
//	resolver:
//	  kind: rest
//	  endpoint: https://repo.example.org/file/v1
//
// The bearer token is best passed as RANGEGET_TOKEN rather than written to
// the file.
package config
