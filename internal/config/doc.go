// Package config loads, validates, and normalizes glossa's TOML
// configuration. A single Config value is constructed at startup and
// passed explicitly to every component; nothing reads configuration
// ambiently after boot.
package config
