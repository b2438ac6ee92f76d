/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import "github.com/invopop/jsonschema"

// reflector is wired with the defaults tool schemas need: inline schemas
// with no $ref indirection, required-ness driven by jsonschema tags.
var reflector = jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	AllowAdditionalProperties:  true,
	DoNotReference:             true,
}

// SchemaFor derives the JSON schema for a tool's argument struct.
func SchemaFor[T any]() *jsonschema.Schema {
	var zero T
	return reflector.Reflect(&zero)
}
