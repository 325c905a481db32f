// Package docs holds the OpenAPI description served by the HTTP transport at
// /swagger/. Regenerate with `swag init -g cmd/narrator/main.go`.
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
        "/audiobooks": {
            "post": {
                "description": "Uploads a PDF, DOCX or TXT document. The text is extracted, optionally rewritten\nfor narration, synthesized with the selected engine and returned as MP3 or WAV.\nEach engine reads only its own options: voice and speed for openai; language, slow\nand tld for gtts; rate, volume and gender for pyttsx3.",
                "consumes": ["multipart/form-data"],
                "produces": ["audio/mpeg", "audio/wav", "application/json"],
                "tags": ["audiobooks"],
                "summary": "Convert a document to an audiobook",
                "parameters": [
                    {"type": "file", "description": "Document (.pdf, .docx, .txt)", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Synthesis engine: openai, gtts or pyttsx3", "name": "engine", "in": "formData"},
                    {"type": "boolean", "description": "Rewrite text for narration before synthesis", "name": "rewrite", "in": "formData"},
                    {"type": "string", "description": "Narration style: storytelling, professional or casual", "name": "style", "in": "formData"},
                    {"type": "number", "description": "Rewrite sampling temperature", "name": "creativity", "in": "formData"},
                    {"type": "integer", "description": "Rewrite chunk size (1000-10000)", "name": "chunk_size", "in": "formData"},
                    {"type": "string", "description": "OpenAI voice", "name": "voice", "in": "formData"},
                    {"type": "number", "description": "OpenAI speed multiplier", "name": "speed", "in": "formData"},
                    {"type": "string", "description": "gTTS language code", "name": "language", "in": "formData"},
                    {"type": "boolean", "description": "gTTS slower reading", "name": "slow", "in": "formData"},
                    {"type": "string", "description": "gTTS accent name or Google domain", "name": "tld", "in": "formData"},
                    {"type": "integer", "description": "Offline words per minute", "name": "rate", "in": "formData"},
                    {"type": "number", "description": "Offline volume 0.0-1.0", "name": "volume", "in": "formData"},
                    {"type": "string", "description": "Offline voice gender keyword", "name": "gender", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Narrated audio", "schema": {"type": "file"}},
                    "400": {"description": "Invalid request, text length or engine", "schema": {"$ref": "#/definitions/transport.ErrorBody"}},
                    "401": {"description": "OpenAI credential missing", "schema": {"$ref": "#/definitions/transport.ErrorBody"}},
                    "422": {"description": "Document could not be read", "schema": {"$ref": "#/definitions/transport.ErrorBody"}},
                    "502": {"description": "Rewrite or synthesis backend failed", "schema": {"$ref": "#/definitions/transport.ErrorBody"}}
                }
            }
        },
        "/runs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "List recent runs",
                "parameters": [
                    {"type": "integer", "description": "Maximum runs to return (default 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/history.Run"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/transport.ErrorBody"}}
                }
            }
        },
        "/voices": {
            "get": {
                "produces": ["application/json"],
                "tags": ["catalogue"],
                "summary": "List engines, narration styles, voices and accents",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.voicesResponse"}}
                }
            }
        }
    },
    "definitions": {
        "history.Run": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "request_id": {"type": "string"},
                "file_name": {"type": "string"},
                "kind": {"type": "string"},
                "engine": {"type": "string"},
                "rewrite": {"type": "boolean"},
                "outcome": {"type": "string"},
                "stage": {"type": "string"},
                "error": {"type": "string"},
                "word_count": {"type": "integer"},
                "rewrite_chunks": {"type": "integer"},
                "synthesis_chunks": {"type": "integer"},
                "audio_bytes": {"type": "integer"},
                "processing_ms": {"type": "integer"},
                "created_at": {"type": "string"}
            }
        },
        "http.voicesResponse": {
            "type": "object",
            "properties": {
                "engines": {"type": "array", "items": {"type": "string"}},
                "styles": {"type": "array", "items": {"type": "string"}},
                "voices": {"$ref": "#/definitions/tts.Catalogue"}
            }
        },
        "transport.ErrorBody": {
            "type": "object",
            "properties": {
                "stage": {"type": "string"},
                "kind": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "tts.Accent": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "tld": {"type": "string"}
            }
        },
        "tts.Catalogue": {
            "type": "object",
            "properties": {
                "openai_voices": {"type": "array", "items": {"type": "string"}},
                "gtts_accents": {"type": "array", "items": {"$ref": "#/definitions/tts.Accent"}},
                "genders": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Narrator API",
	Description:      "Converts PDF, DOCX and text documents into narrated audiobooks.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
