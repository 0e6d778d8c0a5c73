package api

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specData []byte

// GetSwagger parses the embedded OpenAPI document. The result feeds the
// request validation middleware.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(specData)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded openapi spec: %w", err)
	}
	return spec, nil
}
