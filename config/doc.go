// Package config loads sparqlops settings from a file and the environment.
//
// Load starts from Default, overlays a YAML, JSON or TOML file, then applies
// environment variables carrying the prefix (SPARQLOPS_ by default). A
// double underscore separates nesting levels, so
// SPARQLOPS_EXECUTOR__MAX_CONCURRENT sets executor.max_concurrent.
//
// Endpoint credentials may be written as ${VAR} or secretref:<provider>:<ref>
// and are resolved by ResolveEndpoints through the secret package.
package config
