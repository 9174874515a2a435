// Package config loads the daemon's JSON configuration file and fills in
// defaults for anything the operator leaves unset. Relative paths in the file
// are resolved against the config file's directory.
package config
