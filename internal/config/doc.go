// Package config defines runner settings used by the hotswap binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds logging, temp-directory and build-timeout knobs.
package config
