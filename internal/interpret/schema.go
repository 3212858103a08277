// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package interpret

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "rigrun-assist://interpretation.schema.json"

// interpretationSchema accepts the three shapes models produce: an object
// with an "actions" list, a bare list of actions, or a single action object.
// Entries without an "action" name, and entries that are not objects at all,
// pass validation and are turned into clarifications during normalization.
const interpretationSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "action": {
      "properties": {
        "action": {"type": ["string", "null"]},
        "payload": {"type": ["object", "null"]}
      }
    },
    "clarification": {
      "type": "object",
      "required": ["prompt"],
      "properties": {
        "action": {"type": ["string", "null"]},
        "field": {"type": ["string", "null"]},
        "prompt": {"type": "string", "minLength": 1},
        "payload": {"type": ["object", "null"]}
      }
    },
    "clarifications": {
      "type": "array",
      "items": {"$ref": "#/$defs/clarification"}
    }
  },
  "anyOf": [
    {
      "type": "object",
      "required": ["actions"],
      "properties": {
        "actions": {"type": "array", "items": {"$ref": "#/$defs/action"}},
        "clarifications": {"$ref": "#/$defs/clarifications"}
      }
    },
    {
      "type": "object",
      "required": ["clarifications"],
      "properties": {
        "clarifications": {"$ref": "#/$defs/clarifications"}
      }
    },
    {
      "type": "object",
      "required": ["action"],
      "properties": {
        "action": {"type": "string"},
        "payload": {"type": ["object", "null"]},
        "clarifications": {"$ref": "#/$defs/clarifications"}
      }
    },
    {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/$defs/action"}
    }
  ]
}`

// compileSchema compiles the interpretation schema once per interpreter.
func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(interpretationSchema)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}
