// Package database handles connections to the durable row store.
//
// It provides a wrapper around GORM to properly configure Postgres
// connections based on the application's configuration. Hosted
// Postgres-compatible providers (e.g. Supabase) are the expected target.
//
// # Connect
//
// Connect establishes the connection with pooling and an initial ping.
// The durable store is optional: when the connection fails, the hybrid row
// store degrades to its in-process cache and reports persistence as
// "runtime" rather than failing requests.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("durable store unavailable", zap.Error(err))
//	}
package database
