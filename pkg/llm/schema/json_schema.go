package schema

// JSON Schema documents handed to providers that support constrained output.
// They describe the same shapes ParseTurnReply and ParseCarts accept.

func TurnReplyJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"reply", "action"},
		"properties": map[string]any{
			"reply": map[string]any{"type": "string"},
			"action": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "null"},
					map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []string{"type", "payload"},
						"properties": map[string]any{
							"type": map[string]any{
								"type": "string",
								"enum": []string{"suggest_carts"},
							},
							"payload": map[string]any{
								"type":                 "object",
								"additionalProperties": false,
								"required":             []string{"input"},
								"properties": map[string]any{
									"input": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}
}

func CartsJSONSchema() map[string]any {
	product := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"product_id", "name", "quantity"},
		"properties": map[string]any{
			"product_id": map[string]any{"type": "integer"},
			"name":       map[string]any{"type": "string"},
			"quantity":   map[string]any{"type": "integer"},
		},
	}
	cart := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"store_id", "products", "score"},
		"properties": map[string]any{
			"store_id": map[string]any{"type": "integer"},
			"products": map[string]any{"type": "array", "items": product},
			"score":    map[string]any{"type": "number"},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"carts"},
		"properties": map[string]any{
			"carts": map[string]any{"type": "array", "items": cart},
		},
	}
}
