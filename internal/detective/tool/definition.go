package tool

import "github.com/kart-io/eurodetective/pkg/llm"

var pillarDescriptions = [PillarCount]string{
	"Filter for Government Constraints",
	"Filter for Corruption Control",
	"Filter for Open Government",
	"Filter for Fundamental Rights",
	"Filter for Order and Security",
	"Filter for Regulatory Enforcement",
	"Filter for Civil Justice",
	"Filter for Criminal Justice",
}

// Definition 返回 news_events_search 的工具定义，参数为 JSON Schema。
func Definition() llm.ToolDefinition {
	props := map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Search query",
		},
		"country": map[string]any{
			"type":        "string",
			"description": "Filter by country",
			"enum":        Countries,
		},
		"impact_score": map[string]any{
			"description": "Filter by impact score: an integer from 1 to 5 or an operator object such as {\"$gte\": 4}",
			"anyOf": []any{
				map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
				map[string]any{
					"type": "object",
					"additionalProperties": map[string]any{
						"anyOf": []any{
							map[string]any{"type": "integer"},
							map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
						},
					},
				},
			},
		},
	}
	for i, desc := range pillarDescriptions {
		props[PillarField(i)] = map[string]any{
			"type":        "integer",
			"enum":        []int{0, 1},
			"description": desc,
		}
	}

	return llm.ToolDefinition{
		Name:        Name,
		Description: RetrieverDescription,
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []string{"query"},
		},
	}
}
