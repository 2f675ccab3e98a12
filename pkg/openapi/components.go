package openapi

import "maps"

// Shared error responses, keyed by component name.
var errorResponses = map[string]string{
	"BadRequest":         "Missing or invalid input",
	"NotFound":           "Referenced entity not found",
	"Conflict":           "Concurrent modification conflict",
	"ServiceUnavailable": "Upstream analysis or storage unavailable",
	"GatewayTimeout":     "Request deadline exceeded",
}

var errorBody = &Schema{
	Type:       "object",
	Required:   []string{"error"},
	Properties: map[string]*Schema{"error": String("Error message")},
}

// NewComponents returns components holding the shared error responses.
func NewComponents() *Components {
	c := &Components{
		Schemas:   map[string]*Schema{"Error": errorBody},
		Responses: make(map[string]*Response, len(errorResponses)),
	}
	for name, desc := range errorResponses {
		c.Responses[name] = &Response{Description: desc, Content: jsonContent(SchemaRef("Error"))}
	}
	return c
}

// AddSchemas merges schemas into c, replacing same-named entries.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}

// PageOf describes a pagination.PageResult whose data items are the named
// component schema.
func PageOf(itemSchema string) *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"data":        {Type: "array", Items: SchemaRef(itemSchema)},
			"total":       Integer("Rows matching the query"),
			"page":        Integer("1-indexed page number"),
			"page_size":   Integer(""),
			"total_pages": Integer(""),
			"has_more":    {Type: "boolean"},
		},
	}
}
