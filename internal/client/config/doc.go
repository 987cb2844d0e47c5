// Package config loads runtime configuration for the GrowthVault client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the remote document server
//	-i int      online status check interval (seconds)
//	-d string   data directory for the local cache
//	-q int      local quota store capacity (KiB)
//	-l          constrained mode: smaller, lower quality images
//
// # JSON schema
//
// Intervals use timex.Duration, so they can be either strings like "3s" or
// integer nanoseconds. Fields that are absent keep their current value:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "data_dir": "/home/me/.config/growthvault",
//	  "local_quota_kib": 5120,
//	  "constrained_images": false
//	}
package config
