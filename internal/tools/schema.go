package tools

import (
	invschema "github.com/invopop/jsonschema"
)

// Parameters reflects T into the property map and required list sent to the
// model. Fields are required when tagged `jsonschema:"required"`.
func Parameters[T any]() (properties any, required []string) {
	reflector := invschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	s := reflector.Reflect(&v)
	required = s.Required
	if required == nil {
		required = []string{}
	}
	return s.Properties, required
}
