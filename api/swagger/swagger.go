package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ISML Student Portal API",
        "description": "Student portal gateway: auth, batches, classes and payments",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Login, registration and profile"},
        {"name": "Batches", "description": "Batch discovery and enrollment"},
        {"name": "Classes", "description": "Schedules, notes and announcements"},
        {"name": "Notifications", "description": "Student notifications"},
        {"name": "Payments", "description": "Plan selection, checkout and reconciliation"},
        {"name": "Receipts", "description": "Receipt rendering and signed downloads"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Student login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Student registration",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/forgot-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Start password reset",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/reset-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Complete password reset",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current student profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/states": {
            "get": {
                "tags": ["Auth"],
                "summary": "List states for registration",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/centers": {
            "get": {
                "tags": ["Auth"],
                "summary": "List centers in a state",
                "parameters": [
                    {"name": "state_id", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/batches": {
            "get": {
                "tags": ["Batches"],
                "summary": "List batches available at a center",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "center", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/batches/enrolled": {
            "get": {
                "tags": ["Batches"],
                "summary": "List the student's enrollments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/batches/enroll": {
            "post": {
                "tags": ["Batches"],
                "summary": "Request enrollment into a batch",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/classes/{batchId}/meets": {
            "get": {
                "tags": ["Classes"],
                "summary": "Online class schedule for a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batchId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not enrolled in this batch"}
                }
            }
        },
        "/classes/{batchId}/notes": {
            "get": {
                "tags": ["Classes"],
                "summary": "Study notes shared with a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batchId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/classes/{batchId}/chat": {
            "get": {
                "tags": ["Classes"],
                "summary": "Read-only announcement feed for a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "batchId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Unread notifications",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/notifications/{id}": {
            "patch": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as read",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "Charge history with pending payments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/export": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Export the transaction history as CSV",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV file"}
                }
            }
        },
        "/payments/fees": {
            "get": {
                "tags": ["Payments"],
                "summary": "Course fee structure",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/payments/plan": {
            "get": {
                "tags": ["Payments"],
                "summary": "Plan selection status with fees, lock and EMI periods",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Commit to a payment plan (one-way)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectPlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Plan already locked"}
                }
            }
        },
        "/payments/checkout": {
            "post": {
                "tags": ["Payments"],
                "summary": "Open a hosted checkout session for the next due payment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A checkout is already in progress"},
                    "412": {"description": "Plan not locked or period not payable"}
                }
            }
        },
        "/payments/checkout/complete": {
            "post": {
                "tags": ["Payments"],
                "summary": "Gateway success callback for an open checkout",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Accepted, verification in progress"}
                }
            }
        },
        "/payments/checkout/fail": {
            "post": {
                "tags": ["Payments"],
                "summary": "Gateway failure callback for an open checkout",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/payments/checkout/{orderId}/dismiss": {
            "post": {
                "tags": ["Payments"],
                "summary": "Checkout dismissed without paying",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "orderId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/payments/reconcile": {
            "post": {
                "tags": ["Payments"],
                "summary": "Reconcile pending payments against the ledger",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/receipts": {
            "post": {
                "tags": ["Receipts"],
                "summary": "Render a receipt for a confirmed payment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "412": {"description": "Payment not confirmed yet"}
                }
            }
        },
        "/receipts/download": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Download a receipt through a signed link",
                "parameters": [
                    {"name": "token", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Receipt file"},
                    "403": {"description": "Invalid or expired link"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["registration_number", "password"],
            "properties": {
                "registration_number": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SelectPlanRequest": {
            "type": "object",
            "required": ["payment_type"],
            "properties": {
                "payment_type": {"type": "string", "enum": ["full", "emi"]}
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
