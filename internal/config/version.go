package config

// Version is the eventlog binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/eventlog/internal/config.Version=<tag>"
var Version = "dev"
