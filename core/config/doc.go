// Package config provides configuration management for the reconciler.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file, with defaults declared as struct tags on the
// partial configurations.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings,
// divided into subsections:
//   - Server: HTTP server settings (port, API key)
//   - Database: Postgres durable-store connection details
//   - Storage: S3/MinIO credentials and bucket settings
//   - Log: Logging level and format
//   - RowStore: revision cap and durable batching knobs
//   - Match: reconciliation scoring thresholds
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
