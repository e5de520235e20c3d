package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrollment Pipeline API",
        "description": "Read access to the normalized enrollment records, city metrics and generated artifacts of the latest pipeline run",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Enrollments", "description": "Canonical enrollment records"},
        {"name": "Cities", "description": "Per-city enrollment metrics"},
        {"name": "Runs", "description": "Pipeline run summaries"},
        {"name": "Artifacts", "description": "Generated CSV, PDF and chart files"},
        {"name": "Metrics", "description": "Operational counters"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check of the database and cache",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/api/v1/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List canonical enrollment records",
                "parameters": [
                    {"name": "city", "in": "query", "type": "string"},
                    {"name": "participant_id", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid paging", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/cities": {
            "get": {
                "tags": ["Cities"],
                "summary": "List city metrics ordered by total enrollments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/cities/{city}": {
            "get": {
                "tags": ["Cities"],
                "summary": "Get metrics for one city",
                "parameters": [
                    {"name": "city", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "City not present in the latest run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/runs/latest": {
            "get": {
                "tags": ["Runs"],
                "summary": "Summary of the stored pipeline run",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No run stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/artifacts": {
            "get": {
                "tags": ["Artifacts"],
                "summary": "List generated artifacts with signed download links",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/artifacts/{token}": {
            "get": {
                "tags": ["Artifacts"],
                "summary": "Download an artifact",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File contents"},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Artifact not generated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/metrics/system": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Pipeline, cache and request counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Prometheus exposition",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "EnrollmentRecord": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "integer", "format": "int64"},
                "participant_id": {"type": "string"},
                "city": {"type": "string"},
                "enrollment_date": {"type": "string", "format": "date-time", "x-nullable": true},
                "program_center": {"type": "string"},
                "completion_status": {"type": "string"}
            }
        },
        "CityMetrics": {
            "type": "object",
            "properties": {
                "city": {"type": "string"},
                "total_enrollments": {"type": "integer"},
                "repeat_enrollments": {"type": "integer"},
                "first_enrollment": {"type": "string", "format": "date-time", "x-nullable": true},
                "last_enrollment": {"type": "string", "format": "date-time", "x-nullable": true}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
