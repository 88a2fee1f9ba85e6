// Package openapi embeds the OpenAPI description of the safetynet HTTP API.
package openapi

import _ "embed"

// Document contains the OpenAPI YAML served at /openapi.yaml.
//
//go:embed safetynet.yaml
var Document []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), Document...)
}
