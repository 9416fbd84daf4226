package api

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gopkg.in/yaml.v2"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// SwaggerInfo holds the swagger specification info
var SwaggerInfo = struct {
	Version     string
	BasePath    string
	Title       string
	Description string
}{
	Version:     Version,
	BasePath:    "/api/v1",
	Title:       "Trade Ledger API",
	Description: "Trade and counterparty lifecycle API",
}

// setupSwagger configures Swagger documentation routes
func setupSwagger(r *gin.Engine) {
	r.GET("/api/v1/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", openAPIYAML)
	})

	r.GET("/api/v1/openapi.json", func(c *gin.Context) {
		doc, err := openAPIDocument()
		if err != nil {
			logrus.WithError(err).Error("Failed to parse OpenAPI specification")
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    CodeInternal,
					"message": "Failed to parse OpenAPI specification",
				},
			})
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	// Serve Swagger UI
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/api/v1/openapi.json")))

	r.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})

	r.GET("/api/v1/docs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"title":       SwaggerInfo.Title,
				"description": SwaggerInfo.Description,
				"version":     SwaggerInfo.Version,
				"docs_url":    "/docs/index.html",
				"openapi_url": "/api/v1/openapi.json",
				"endpoints":   GetSwaggerRoutes(),
			},
		})
	})
}

// openAPIDocument decodes the embedded YAML into values encoding/json accepts
func openAPIDocument() (interface{}, error) {
	var doc interface{}
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal openapi.yaml: %w", err)
	}
	return jsonCompatible(doc), nil
}

// jsonCompatible rewrites the map[interface{}]interface{} values yaml.v2 produces
func jsonCompatible(v interface{}) interface{} {
	switch value := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, item := range value {
			out[fmt.Sprint(k)] = jsonCompatible(item)
		}
		return out
	case []interface{}:
		for i, item := range value {
			value[i] = jsonCompatible(item)
		}
		return value
	default:
		return v
	}
}

// GetSwaggerRoutes returns documentation-related routes info
func GetSwaggerRoutes() map[string]string {
	return map[string]string{
		"docs":         "/docs/index.html - Interactive API documentation (Swagger UI)",
		"openapi_json": "/api/v1/openapi.json - OpenAPI 3.0 JSON specification",
		"openapi_yaml": "/api/v1/openapi.yaml - OpenAPI 3.0 YAML specification",
		"api_info":     "/api/v1/docs - API documentation information",
	}
}
