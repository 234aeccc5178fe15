package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Thesis Defense API",
        "description": "Thesis lifecycle, defense scheduling and panel decisions",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Theses", "description": "Thesis registration and lifecycle"},
        {"name": "Defenses", "description": "Defense booking, rescheduling and status"},
        {"name": "Panel", "description": "Panel votes and aggregated outcome"},
        {"name": "Availability", "description": "Declared weekly availability"},
        {"name": "Exports", "description": "Docket files and calendar feeds"}
    ],
    "paths": {
        "/theses": {
            "post": {
                "tags": ["Theses"],
                "summary": "Register a thesis",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateThesisRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Group already has a thesis", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/theses/{id}": {
            "get": {
                "tags": ["Theses"],
                "summary": "Get thesis",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/theses/{id}/documents": {
            "post": {
                "tags": ["Theses"],
                "summary": "Report a document submission or review",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DocumentEventRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition or concurrent update", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/theses/{id}/archive": {
            "post": {
                "tags": ["Theses"],
                "summary": "Archive a finally approved thesis",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/theses/{id}/history": {
            "get": {
                "tags": ["Theses"],
                "summary": "Thesis status history",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/theses/{id}/defenses": {
            "get": {
                "tags": ["Theses"],
                "summary": "Defense schedules of a thesis",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/defenses": {
            "get": {
                "tags": ["Defenses"],
                "summary": "List defense schedules",
                "parameters": [
                    {"name": "thesis_id", "in": "query", "type": "string"},
                    {"name": "participant_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Defenses"],
                "summary": "Book a defense session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDefenseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Participants unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/defenses/auto": {
            "post": {
                "tags": ["Defenses"],
                "summary": "Book the earliest free slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AutoScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "No free slot in the horizon", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/defenses/free-slots": {
            "post": {
                "tags": ["Defenses"],
                "summary": "Windows where every participant is free",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FreeSlotsRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/defenses/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export the defense docket",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]},
                    {"name": "participant_id", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/defenses/{id}": {
            "get": {
                "tags": ["Defenses"],
                "summary": "Get defense schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/defenses/{id}/reschedule": {
            "post": {
                "tags": ["Defenses"],
                "summary": "Move a defense to a new window",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleDefenseRequest"}}
                ],
                "responses": {"201": {"description": "Replacement booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/defenses/{id}/cancel": {
            "post": {
                "tags": ["Defenses"],
                "summary": "Cancel a defense",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CancelDefenseRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/defenses/{id}/start": {
            "post": {
                "tags": ["Defenses"],
                "summary": "Mark a defense as in progress",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/defenses/{id}/complete": {
            "post": {
                "tags": ["Defenses"],
                "summary": "Mark a defense as held",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/defenses/{id}/panel-actions": {
            "get": {
                "tags": ["Panel"],
                "summary": "Current panel decisions",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Panel"],
                "summary": "Record the caller's panel decision",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PanelDecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Caller is not on the panel", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/defenses/{id}/panel-actions/history": {
            "get": {
                "tags": ["Panel"],
                "summary": "Every decision ever submitted",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/defenses/{id}/outcome": {
            "get": {
                "tags": ["Panel"],
                "summary": "Aggregated panel outcome",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/participants/{id}/calendar.ics": {
            "get": {
                "tags": ["Exports"],
                "summary": "iCalendar feed of a participant's defenses",
                "produces": ["text/calendar"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Calendar"}}
            }
        },
        "/users/{userID}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Declared availability of a user",
                "parameters": [{"name": "userID", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Availability"],
                "summary": "Replace declared availability",
                "parameters": [
                    {"name": "userID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceAvailabilityRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "CreateThesisRequest": {
            "type": "object",
            "required": ["title", "group_id", "adviser_id"],
            "properties": {
                "title": {"type": "string"},
                "group_id": {"type": "string"},
                "adviser_id": {"type": "string"}
            }
        },
        "DocumentEventRequest": {
            "type": "object",
            "required": ["document_type", "action"],
            "properties": {
                "document_type": {"type": "string", "enum": ["concept", "proposal", "research", "final"]},
                "action": {"type": "string", "enum": ["submitted", "approved", "rejected"]},
                "feedback": {"type": "string"}
            }
        },
        "CreateDefenseRequest": {
            "type": "object",
            "required": ["thesis_id", "stage", "start", "end", "adviser_id", "panel_member_ids"],
            "properties": {
                "thesis_id": {"type": "string"},
                "stage": {"type": "string", "enum": ["concept", "proposal", "final"]},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "location": {"type": "string"},
                "adviser_id": {"type": "string"},
                "panel_member_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "AutoScheduleRequest": {
            "type": "object",
            "required": ["thesis_id", "stage", "adviser_id", "panel_member_ids"],
            "properties": {
                "thesis_id": {"type": "string"},
                "stage": {"type": "string", "enum": ["concept", "proposal", "final"]},
                "adviser_id": {"type": "string"},
                "panel_member_ids": {"type": "array", "items": {"type": "string"}},
                "location": {"type": "string"},
                "preferred_date": {"type": "string", "format": "date"},
                "duration_minutes": {"type": "integer"}
            }
        },
        "RescheduleDefenseRequest": {
            "type": "object",
            "required": ["start", "end"],
            "properties": {
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "location": {"type": "string"}
            }
        },
        "CancelDefenseRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {"reason": {"type": "string"}}
        },
        "FreeSlotsRequest": {
            "type": "object",
            "required": ["participants", "date"],
            "properties": {
                "participants": {"type": "array", "items": {"type": "string"}},
                "date": {"type": "string", "format": "date"},
                "duration_minutes": {"type": "integer"}
            }
        },
        "PanelDecisionRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["approved", "needs_revision", "rejected"]},
                "comments": {"type": "string"}
            }
        },
        "AvailabilityWindow": {
            "type": "object",
            "properties": {
                "day_of_week": {"type": "integer", "minimum": 0, "maximum": 6},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "12:00"}
            }
        },
        "ReplaceAvailabilityRequest": {
            "type": "object",
            "properties": {
                "windows": {"type": "array", "items": {"$ref": "#/definitions/AvailabilityWindow"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
