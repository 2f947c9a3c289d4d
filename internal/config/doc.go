// Package config provides configuration structures and utilities for
// capilint. It defines the options for collecting and scanning source
// files, rule loading, report output and run history, and loads the
// optional .capilint.yaml file.
package config
