package info

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"
)

// UIType selects the OpenAPI viewer rendered by the docs page.
type UIType string

const (
	UISwaggerUI UIType = "swagger"
	UIStoplight UIType = "stoplight"
	UIScalar    UIType = "scalar"
	UIRedoc     UIType = "redoc"
)

// ParseUIType maps a configuration value to a UIType.
func ParseUIType(s string) (UIType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "swagger", "swaggerui", "swagger-ui":
		return UISwaggerUI, nil
	case "stoplight", "elements":
		return UIStoplight, nil
	case "scalar":
		return UIScalar, nil
	case "redoc":
		return UIRedoc, nil
	default:
		return "", fmt.Errorf("unknown docs ui %q", s)
	}
}

var (
	//go:embed assets/swaggerui.html
	openapiHTMLSwaggerUI string
	//go:embed assets/stoplight.html
	openapiHTMLStoplight string
	//go:embed assets/scalar.html
	openapiHTMLScalar string
	//go:embed assets/redoc.html
	openapiHTMLRedoc string
	//go:embed assets/dashboard.html
	dashboardHTML string
)

var (
	templateSwaggerUI = template.Must(template.New("openapi-swaggerui").Parse(openapiHTMLSwaggerUI))
	templateStoplight = template.Must(template.New("openapi-stoplight").Parse(openapiHTMLStoplight))
	templateScalar    = template.Must(template.New("openapi-scalar").Parse(openapiHTMLScalar))
	templateRedoc     = template.Must(template.New("openapi-redoc").Parse(openapiHTMLRedoc))

	defaultDashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))
)

func templateFor(ui UIType) *template.Template {
	switch ui {
	case UIStoplight:
		return templateStoplight
	case UIScalar:
		return templateScalar
	case UIRedoc:
		return templateRedoc
	default:
		return templateSwaggerUI
	}
}
