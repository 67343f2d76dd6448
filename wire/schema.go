package wire

import (
	"github.com/invopop/jsonschema"
)

// NamedSchema pairs a message type with its reflected JSON schema.
type NamedSchema struct {
	Name   string
	Schema *jsonschema.Schema
}

// Schemas reflects the request envelope and every reply document into JSON
// schemas, requests first.
func Schemas() []NamedSchema {
	return []NamedSchema{
		{Name: "request", Schema: reflectSchema[Request]()},
		{Name: "space", Schema: reflectSchema[SpaceReply]()},
		{Name: "step", Schema: reflectSchema[StepReply]()},
		{Name: "sample", Schema: reflectSchema[SampleReply]()},
		{Name: "instance", Schema: reflectSchema[InstanceReply]()},
		{Name: "url", Schema: reflectSchema[URLReply]()},
	}
}

func reflectSchema[T any]() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true, // servers may add fields
	}
	return r.Reflect(new(T))
}
