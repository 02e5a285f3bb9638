package providers

import (
	"context"
)

// Config represents one request to an LLM provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string

	// Image is sent alongside the prompt when set. MIMEType describes it.
	Image    []byte
	MIMEType string

	// JSON asks the backend for a JSON-only answer when it supports that.
	JSON bool
	// Schema constrains the shape of a JSON answer on backends that accept
	// one. Others ignore it and rely on the prompt.
	Schema *Schema
}

// SchemaType is the JSON type of a schema node
type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
	TypeArray   SchemaType = "array"
	TypeObject  SchemaType = "object"
)

// Schema is a backend-neutral subset of JSON Schema
type Schema struct {
	Type        SchemaType
	Description string
	Items       *Schema
	Properties  map[string]*Schema
	Required    []string
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Name() string
	ExtractText(ctx context.Context, config Config) (string, error)
}
