package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "PrepDeck Marketing API",
        "description": "Live home page content, reviews, analytics and the page stream",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Content", "description": "Home page sections served from live subscriptions"},
        {"name": "Reviews", "description": "Approved testimonials and review submission"},
        {"name": "Analytics", "description": "Conversion tracking and the contact redirect"},
        {"name": "Images", "description": "Lazy image probing"},
        {"name": "Stream", "description": "WebSocket page stream"}
    ],
    "paths": {
        "/home": {
            "get": {
                "tags": ["Content"],
                "summary": "Home page content",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/banners": {
            "get": {
                "tags": ["Content"],
                "summary": "Active banners in display order",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/hero": {
            "get": {
                "tags": ["Content"],
                "summary": "Active hero configuration",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Content"],
                "summary": "Active courses, featured first",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/news": {
            "get": {
                "tags": ["Content"],
                "summary": "News posts, newest first",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/popup": {
            "get": {
                "tags": ["Content"],
                "summary": "Promotional popup, at most once per day",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reviews": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Approved reviews, newest first",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Reviews"],
                "summary": "Submit a review",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReviewRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid rating or comment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reviews/status": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Review eligibility",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/events": {
            "post": {
                "tags": ["Analytics"],
                "summary": "Track a conversion event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TrackEventRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contact": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Redirect to the messaging deep link",
                "parameters": [
                    {"name": "message", "in": "query", "type": "string"}
                ],
                "responses": {"302": {"description": "Redirect"}}
            }
        },
        "/images/probe": {
            "get": {
                "tags": ["Images"],
                "summary": "Probe an image source",
                "parameters": [
                    {"name": "src", "in": "query", "type": "string", "required": true},
                    {"name": "priority", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing src", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/stream": {
            "get": {
                "tags": ["Stream"],
                "summary": "WebSocket page stream",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        }
    },
    "definitions": {
        "CreateReviewRequest": {
            "type": "object",
            "required": ["rating", "comment"],
            "properties": {
                "rating": {"type": "integer", "minimum": 1, "maximum": 5},
                "comment": {"type": "string", "maxLength": 2000}
            }
        },
        "TrackEventRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "cta": {"type": "string"},
                "page": {"type": "string"},
                "properties": {"type": "object", "additionalProperties": {"type": "string"}}
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
                "meta": {
                    "type": "object",
                    "properties": {
                        "cache_source": {"type": "string", "enum": ["", "cache", "live", "empty"]},
                        "loading": {"type": "boolean"},
                        "updated_at": {"type": "string", "format": "date-time"},
                        "processing_time_ms": {"type": "integer"}
                    }
                }
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
