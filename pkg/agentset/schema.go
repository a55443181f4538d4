package agentset

// Schema is the JSON Schema agent set files are checked against before decoding
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Relay agent set",
  "type": "object",
  "required": ["agents"],
  "additionalProperties": false,
  "definitions": {
    "name": {
      "type": "string",
      "pattern": "^[A-Za-z0-9][A-Za-z0-9_.-]*$",
      "maxLength": 64
    },
    "names": {
      "type": "array",
      "items": { "$ref": "#/definitions/name" }
    },
    "duration": {
      "type": "string",
      "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
    }
  },
  "properties": {
    "agents": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name"],
        "additionalProperties": false,
        "properties": {
          "name": { "$ref": "#/definitions/name" },
          "type": { "type": "string", "enum": ["scripted", "llm"] },
          "description": { "type": "string" },
          "answer": { "type": "string" },
          "delegate_to": { "$ref": "#/definitions/name" },
          "reason": { "type": "string" },
          "payload": { "type": "string" },
          "fail": { "type": "string" },
          "delay": { "$ref": "#/definitions/duration" },
          "profile": { "type": "string" },
          "model": { "type": "string" },
          "system_prompt": { "type": "string" },
          "temperature": { "type": "number", "minimum": 0, "maximum": 2 },
          "max_tokens": { "type": "integer", "minimum": 1 },
          "max_retries": { "type": "integer", "minimum": 0, "maximum": 10 },
          "handoff_targets": { "$ref": "#/definitions/names" }
        }
      }
    },
    "handoff": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "start": { "$ref": "#/definitions/name" },
        "max_depth": { "type": "integer", "minimum": 1 },
        "hop_timeout": { "$ref": "#/definitions/duration" },
        "overall_timeout": { "$ref": "#/definitions/duration" }
      }
    },
    "sequential": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "agents": { "$ref": "#/definitions/names" },
        "timeout": { "$ref": "#/definitions/duration" },
        "agent_timeout": { "$ref": "#/definitions/duration" }
      }
    },
    "parallel": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "agents": { "$ref": "#/definitions/names" },
        "strategy": { "type": "string", "enum": ["last", "last_result", "first_success", "merge", "vote"] },
        "timeout": { "$ref": "#/definitions/duration" },
        "agent_timeout": { "$ref": "#/definitions/duration" },
        "max_concurrency": { "type": "integer", "minimum": 0 }
      }
    }
  }
}`
