// Package docs is generated by swaggo/swag from the handler annotations.
// Regenerate with: swag init -g cmd/api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Mesa"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "API root info",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health/db": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Database health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object"}}
                }
            }
        },
        "/health/cache": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Cache health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/alerts/dispatch": {
            "get": {
                "description": "Delivers every visible alert to every active subscription at most once per bucket. Called by an external scheduler with the cron secret.",
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "Run a dispatch pass",
                "parameters": [
                    {"type": "string", "description": "Cron secret (alternative to Authorization: Bearer)", "name": "secret", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.DispatchResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.DispatchResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.DispatchResponse"}}
                }
            }
        },
        "/alerts/visible": {
            "get": {
                "description": "Returns active alerts visible at the current instant in the operating time zone, localized by the lang query parameter or Accept-Language.",
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "Visible alerts",
                "parameters": [
                    {"type": "string", "description": "Language code, e.g. es", "name": "lang", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.VisibleAlert"}}},
                    "304": {"description": "Not Modified"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/push/subscribe": {
            "post": {
                "description": "Upserts the subscription keyed by endpoint and clears any previous revocation.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["push"],
                "summary": "Register a push subscription",
                "parameters": [
                    {"description": "PushSubscription", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.SubscribeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/push/unsubscribe": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["push"],
                "summary": "Revoke a push subscription",
                "parameters": [
                    {"description": "Endpoint to revoke", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.UnsubscribeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/push/vapid-public-key": {
            "get": {
                "produces": ["application/json"],
                "tags": ["push"],
                "summary": "VAPID public key",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.DispatchResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "due": {"type": "integer"},
                "alerts": {"type": "integer"},
                "targets": {"type": "integer"},
                "sent": {"type": "integer"},
                "skipped": {"type": "integer"},
                "failed": {"type": "integer"},
                "revoked": {"type": "integer"},
                "rescheduled": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "handler.SubscribeRequest": {
            "type": "object",
            "required": ["endpoint"],
            "properties": {
                "endpoint": {"type": "string"},
                "keys": {
                    "type": "object",
                    "properties": {
                        "p256dh": {"type": "string"},
                        "auth": {"type": "string"}
                    }
                },
                "lang": {"type": "string"},
                "tz": {"type": "string"},
                "user_agent": {"type": "string"}
            }
        },
        "handler.UnsubscribeRequest": {
            "type": "object",
            "required": ["endpoint"],
            "properties": {
                "endpoint": {"type": "string"}
            }
        },
        "handler.VisibleAlert": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "content": {"type": "string"},
                "version": {"type": "integer"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "detail": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Mesa Alerts API",
	Description:      "Alert dispatch engine: time-windowed alerts delivered as Web Push notifications with per-bucket deduplication.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
