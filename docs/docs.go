// Package docs holds the OpenAPI document served next to the Swagger UI.
package docs

import _ "embed"

// SwaggerJSON is the Swagger 2.0 description of the HTTP API.
//
//go:embed swagger.json
var SwaggerJSON []byte
