package docsgen

import (
	"github.com/getkin/kin-openapi/openapi3"
)

func baseComponents() *openapi3.Components {
	successSchema := openapi3.NewObjectSchema().
		WithProperty("success", openapi3.NewBoolSchema()).
		WithProperty("data", openapi3.NewObjectSchema()).
		WithProperty("timestamp", openapi3.NewDateTimeSchema())
	successSchema.Required = []string{"success", "timestamp"}

	errorSchema := openapi3.NewObjectSchema().
		WithProperty("success", openapi3.NewBoolSchema()).
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("traceId", openapi3.NewStringSchema()).
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("timestamp", openapi3.NewDateTimeSchema())
	errorSchema.Required = []string{"success", "error", "timestamp"}

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", errorSchema)
	errorResponse := func(description string) *openapi3.ResponseRef {
		return &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription(description).
				WithContent(openapi3.NewContentWithJSONSchemaRef(errorRef)),
		}
	}

	return &openapi3.Components{
		Schemas: openapi3.Schemas{
			"SuccessResponse": openapi3.NewSchemaRef("", successSchema),
			"ErrorResponse":   openapi3.NewSchemaRef("", errorSchema),
		},
		Responses: openapi3.ResponseBodies{
			"BadRequest":          errorResponse("Bad request"),
			"Unauthorized":        errorResponse("Unauthorized"),
			"InternalServerError": errorResponse("Internal server error"),
		},
		SecuritySchemes: openapi3.SecuritySchemes{
			"ApiKeyAuth": &openapi3.SecuritySchemeRef{
				Value: openapi3.NewSecurityScheme().
					WithType("apiKey").
					WithIn("header").
					WithName("Authorization"),
			},
		},
	}
}
