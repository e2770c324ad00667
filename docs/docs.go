// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/functions/v1/get-breaking-markets": {
            "get": {
                "description": "Markets with the largest recent price movement, ordered by movement score.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["breaking"],
                "summary": "Rank breaking markets",
                "parameters": [
                    {"type": "integer", "default": 20, "description": "result size (1-100)", "name": "limit", "in": "query"},
                    {"type": "number", "default": 0.05, "description": "minimum absolute price change (0-1)", "name": "min_price_change", "in": "query"},
                    {"type": "integer", "default": 24, "description": "window in hours (1-168)", "name": "time_range_hours", "in": "query"},
                    {"type": "string", "description": "single market id or condition id; bypasses the threshold", "name": "market_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.listResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            },
            "post": {
                "description": "Markets with the largest recent price movement, ordered by movement score.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["breaking"],
                "summary": "Rank breaking markets",
                "parameters": [
                    {"description": "same parameters as JSON", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/service.Params"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.listResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/functions/v1/send-breaking-daily": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["newsletter"],
                "summary": "Send the breaking-markets digest",
                "parameters": [
                    {"description": "frequency (daily|weekly) and market limit", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/service.DispatchOptions"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.DispatchResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/functions/v1/subscribe-newsletter": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["newsletter"],
                "summary": "Subscribe to the newsletter",
                "parameters": [
                    {"description": "email and optional frequency", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.subscribeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/functions/v1/unsubscribe-newsletter": {
            "get": {
                "produces": ["application/json"],
                "tags": ["newsletter"],
                "summary": "Unsubscribe from the newsletter",
                "parameters": [
                    {"type": "string", "description": "unsubscribe token from the email link", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            },
            "post": {
                "produces": ["application/json"],
                "tags": ["newsletter"],
                "summary": "Unsubscribe from the newsletter",
                "parameters": [
                    {"type": "string", "description": "unsubscribe token from the email link", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/functions/v1/sync-markets": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Without condition_ids every active market is paged in; with them only those markets are refreshed.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sync"],
                "summary": "Sync markets and record price points",
                "parameters": [
                    {"type": "string", "description": "comma separated condition ids", "name": "condition_ids", "in": "query"},
                    {"description": "condition ids", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/service.SyncOptions"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.SyncResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/readyz": {
            "get": {
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "apperr.BatchFailure": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "item": {"type": "string"}
            }
        },
        "handler.errorResponse": {
            "type": "object",
            "properties": {
                "details": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "handler.listResponse": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "data": {},
                "success": {"type": "boolean"},
                "timestamp": {"type": "string"}
            }
        },
        "handler.messageResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "message": {"type": "string"},
                "reactivated": {"type": "boolean"},
                "success": {"type": "boolean"}
            }
        },
        "handler.subscribeRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "frequency": {"type": "string"}
            }
        },
        "service.DispatchOptions": {
            "type": "object",
            "properties": {
                "frequency": {"type": "string"},
                "limit": {"type": "integer"}
            }
        },
        "service.DispatchResult": {
            "type": "object",
            "properties": {
                "duration_ms": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "failed": {"type": "integer"},
                "sent": {"type": "integer"},
                "skipped": {"type": "integer"},
                "timestamp": {"type": "string"}
            }
        },
        "service.Params": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "market_id": {"type": "string"},
                "min_price_change": {"type": "number"},
                "time_range_hours": {"type": "integer"}
            }
        },
        "service.SyncOptions": {
            "type": "object",
            "properties": {
                "condition_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "service.SyncResult": {
            "type": "object",
            "properties": {
                "duration_ms": {"type": "integer"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/apperr.BatchFailure"}},
                "failed": {"type": "integer"},
                "fetched": {"type": "integer"},
                "next_offset": {"type": "integer"},
                "no_price": {"type": "integer"},
                "price_points": {"type": "integer"},
                "scope": {"type": "string"},
                "skipped": {"type": "integer"},
                "upserted": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Palpiteiros Breaking Markets API",
	Description:      "Breaking prediction markets, market sync, and the newsletter digest.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
