//go:build integration

// Package integration provides integration tests publishing archives to a
// real OCI registry.
//
// These tests require Docker and run registry:2 through testcontainers.
// Run with: go test -tags=integration ./integration/...
package integration
