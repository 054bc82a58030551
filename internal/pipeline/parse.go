package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// affirmatives are the decision tokens treated as "reply".
var affirmatives = []string{"YES", "ДА", "Y"}

const (
	reasonMissing     = "Нет причины"
	reasonAutoYes     = "Автоматический анализ (YES найдено в тексте)"
	reasonAutoNo      = "Автоматический анализ (NO по умолчанию)"
	reasonBusy        = "Пропускаю запрос: уже идет генерация ответа"
	decisionSeparator = "|"
)

// ParseDecision extracts a (reply, reason) pair from raw model output.
// It never fails: unparseable output yields a negative decision.
func ParseDecision(raw string) Decision {
	if strings.Contains(raw, decisionSeparator) {
		parts := strings.SplitN(raw, decisionSeparator, 3)
		verdict := strings.ToUpper(strings.TrimSpace(parts[0]))
		reason := reasonMissing
		if len(parts) > 1 {
			reason = strings.TrimSpace(parts[1])
		}
		for _, token := range affirmatives {
			if verdict == token {
				return Decision{ShouldReply: true, Reason: reason}
			}
		}
		return Decision{ShouldReply: false, Reason: reason}
	}

	upper := strings.ToUpper(raw)
	for _, token := range affirmatives {
		if strings.Contains(upper, token) {
			return Decision{ShouldReply: true, Reason: reasonAutoYes}
		}
	}
	return Decision{ShouldReply: false, Reason: reasonAutoNo}
}

// parseClassification pulls the first JSON object out of raw model
// output and decodes it. Models tend to wrap the object in prose.
func parseClassification(raw string) (Classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Classification{}, fmt.Errorf("no JSON object in %q", snippet(raw, 80))
	}
	var c Classification
	if err := json.Unmarshal([]byte(raw[start:end+1]), &c); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	return c, nil
}

func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
