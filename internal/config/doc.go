// Package config provides configuration structures and utilities for devserve.
// It defines the launch options for the supervised server process, the
// watch-and-reload settings, and the named launch profiles loaded from the
// .devserve.yaml configuration file.
package config
