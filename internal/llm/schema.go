package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output constraint
// and also use it locally to validate the response. The property names here
// are what the schema catalog's source paths resolve against.
func BuildInvoiceJSONSchema() map[string]any {
	party := func() map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":               map[string]any{"type": "string"},
				"address":            map[string]any{"type": "string"},
				"vatNumber":          map[string]any{"type": "string"},
				"registrationNumber": map[string]any{"type": "string"},
			},
		}
	}

	row := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
			"quantity":    decimalProp(),
			"unitPrice":   decimalProp(),
			"exclVAT":     decimalProp(),
			"vatRate":     decimalProp(),
		},
		"required": []string{"description"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"invoiceNumber":  map[string]any{"type": "string", "minLength": 1},
			"invoiceDate":    map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"dueDate":        map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"currency":       map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
			"orderReference": map[string]any{"type": "string"},
			"creditor":       party(),
			"debtor":         party(),
			"payment": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"iban":      map[string]any{"type": "string"},
					"reference": map[string]any{"type": "string"},
					"terms":     map[string]any{"type": "string"},
				},
			},
			"vatAmount":    decimalProp(),
			"totalInclVAT": decimalProp(),
			"articleRows":  map[string]any{"type": "array", "items": row},
			"confidence":   map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"invoiceNumber", "invoiceDate", "currency", "totalInclVAT"},
	}
}

func decimalProp() map[string]any {
	// Decimal as a string; both separators appear in scanned invoices.
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+([.,]\d{1,4})?$`,
	}
}
