// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A minimal file needs only instance.id; every other field has a default, and
// the database section is only checked when journal.driver is "postgres".
package config
