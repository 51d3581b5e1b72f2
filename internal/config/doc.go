// Package config handles configuration loading for parlor-server.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${PARLOR_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  session_ttl: "168h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API and live subscriptions
//
// Database:
//
//	database:
//	  path: "/var/lib/parlor/parlor.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${PARLOR_JWT_SECRET}"  # Required
//	  session_ttl: "168h"                 # Defaults to 7 days
//
// Bot replies:
//
//	reply:
//	  base_url: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "parlor"
//	  auth_key: "${TS_AUTHKEY}"
//	  funnel: false
//
// CORS:
//
//	cors:
//	  allowed_origins:
//	    - "http://localhost:3000"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/parlor/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
