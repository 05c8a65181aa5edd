// Package config loads, normalizes, and validates loadctl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the LOADCTL_API_URL environment
// override. The Config type is the single injected value carrying the backend
// base URL, the Locust UI fallback, request timeouts, and monitor intervals;
// nothing else in the module reads global connection settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, canonical log formats, and clear validation errors.
package config
