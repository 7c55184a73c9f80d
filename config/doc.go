// Package config provides the configuration structures for the crawler engine.
//
// It defines traversal budgets (depth and total requests), the per-request
// timeout and User-Agent used by the default network dependency, the domain
// filtering policy, and the ordered domain queue table that assigns
// concurrency and delay settings per destination.
//
// Configuration is normally built in code with NewConfig, but a YAML file can
// be loaded with LoadConfigFile for command line use.
package config
