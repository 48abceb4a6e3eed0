package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TeamHub Auth API",
        "description": "Cookie-based session lifecycle: login, token rotation, revocation and CSRF.",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Auth", "description": "Local and Google sign-in"},
        {"name": "Tokens", "description": "Session issue, access token rotation and logout"},
        {"name": "Sessions", "description": "Session introspection and revocation"},
        {"name": "CSRF", "description": "Double-submit token issue"},
        {"name": "Users", "description": "Current user"}
    ],
    "paths": {
        "/csrf-token": {
            "get": {
                "tags": ["CSRF"],
                "summary": "Issue CSRF token",
                "description": "Sets the x-csrf-token cookie. Mutating requests echo it in the X-CSRF-Token header.",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/local/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Username and password login",
                "parameters": [
                    {"name": "X-CSRF-Token", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LocalLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Login ticket issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "CSRF rejected", "schema": {"$ref": "#/definitions/Marker"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/oauth": {
            "post": {
                "tags": ["Auth"],
                "summary": "Google login",
                "parameters": [
                    {"name": "X-CSRF-Token", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OAuthLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Login ticket issued or registration required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Google account could not be verified", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/oauth/start": {
            "get": {
                "tags": ["Auth"],
                "summary": "Start a polled Google sign-in",
                "responses": {
                    "200": {"description": "State and consent URL", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/oauth/status": {
            "get": {
                "tags": ["Auth"],
                "summary": "Poll a Google sign-in",
                "parameters": [
                    {"name": "state", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "pending, completed, error or timeout", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/google/callback": {
            "get": {
                "tags": ["Auth"],
                "summary": "Google redirect target",
                "parameters": [
                    {"name": "state", "in": "query", "required": true, "type": "string"},
                    {"name": "code", "in": "query", "type": "string"},
                    {"name": "error", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Flow finished", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/tokens/refresh": {
            "post": {
                "tags": ["Tokens"],
                "summary": "Exchange a login ticket for a session",
                "description": "Sets the accessToken and refreshToken cookies and replaces any earlier session of the user.",
                "parameters": [
                    {"name": "X-CSRF-Token", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IssueSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid login ticket", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Tokens"],
                "summary": "Logout",
                "parameters": [
                    {"name": "X-CSRF-Token", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Session revoked and cookies cleared"}
                }
            }
        },
        "/auth/tokens/access": {
            "get": {
                "tags": ["Tokens"],
                "summary": "Rotate the access token",
                "description": "Requires the refreshToken cookie. Safe to call repeatedly with the same refresh token.",
                "responses": {
                    "200": {"description": "New access cookie set", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing cookie or TOKEN_REVOKED", "schema": {"$ref": "#/definitions/Marker"}},
                    "403": {"description": "TOKEN_INVALID", "schema": {"$ref": "#/definitions/Marker"}}
                }
            }
        },
        "/sessions/me": {
            "delete": {
                "tags": ["Tokens"],
                "summary": "Logout",
                "parameters": [
                    {"name": "X-CSRF-Token", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Session revoked and cookies cleared"}
                }
            }
        },
        "/sessions/active": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List active sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing cookie or TOKEN_REVOKED", "schema": {"$ref": "#/definitions/Marker"}}
                }
            }
        },
        "/sessions/current": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing cookie or TOKEN_REVOKED", "schema": {"$ref": "#/definitions/Marker"}}
                }
            }
        },
        "/sessions/security-check": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Session security report",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing cookie or TOKEN_REVOKED", "schema": {"$ref": "#/definitions/Marker"}}
                }
            }
        },
        "/sessions/{sessionId}": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Revoke a session",
                "parameters": [
                    {"name": "sessionId", "in": "path", "required": true, "type": "string"},
                    {"name": "X-CSRF-Token", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Revoked"},
                    "404": {"description": "Unknown session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/revoke-all/except-current": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Revoke every other session",
                "parameters": [
                    {"name": "X-CSRF-Token", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing cookie or TOKEN_REVOKED", "schema": {"$ref": "#/definitions/Marker"}},
                    "403": {"description": "TOKEN_INVALID", "schema": {"$ref": "#/definitions/Marker"}}
                }
            }
        }
    },
    "definitions": {
        "Identity": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"}
            },
            "required": ["userId"]
        },
        "LocalLoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["username", "password"]
        },
        "OAuthLoginRequest": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "code": {"type": "string"},
                "codeVerifier": {"type": "string"},
                "redirectUri": {"type": "string"}
            }
        },
        "IssueSessionRequest": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/Identity"},
                "loginTicket": {"type": "string"}
            },
            "required": ["user", "loginTicket"]
        },
        "Marker": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "enum": ["TOKEN_REVOKED", "TOKEN_INVALID", "CSRF_INVALID"]},
                "message": {"type": "string"}
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
