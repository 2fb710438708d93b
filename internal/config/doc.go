// Package config provides configuration loading, merging, and validation
// facilities for the field sync agent.
//
// Configuration is assembled from multiple sources; a field set by an earlier
// source is kept when later sources also set it:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON config file
//  4. Built-in defaults
//
// The main entry point is [GetStructuredConfig].
package config
