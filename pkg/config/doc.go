// Package config defines the gateway configuration model and its YAML
// loading pipeline.
//
// Configuration is loaded from a YAML file, filled with defaults,
// overridden by MERIDIAN_* environment variables, and validated. A
// fsnotify-based Watcher re-loads the file on change so routing and
// batching knobs can be re-tuned without a restart.
package config
