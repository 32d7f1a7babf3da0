// Package api embeds the OpenAPI description of the peer wire contract,
// served by each node at /v1/openapi.yaml.
package api

import _ "embed"

// OpenAPISpec is the raw OpenAPI 3.1 YAML specification.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
