// Package server holds the HTTP server configuration.
//
// While the start command handles the server startup, this package defines
// the configuration structure for server settings (port, API key) so that
// core/config can embed it alongside the other partial configurations.
package server
