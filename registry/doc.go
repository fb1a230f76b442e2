// Package registry publishes generated archives to OCI registries.
//
// A Pusher spools the archive stream to a temporary file while digesting
// it, uploads it as a single application/zip layer, and tags an OCI 1.1
// artifact manifest referencing it. Any oras.Target works as destination:
// a remote repository from NewRepository, or an in-memory store in tests.
package registry
