package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/logging"
)

// Decomposer splits complex and multi-step queries into independently
// searchable subtasks. Simple queries pass through untouched.
type Decomposer struct {
	llm         llm.Provider
	maxSubtasks int
	log         *logrus.Entry
}

// NewDecomposer creates a decomposer capping subtask lists at maxSubtasks.
func NewDecomposer(provider llm.Provider, maxSubtasks int) *Decomposer {
	if maxSubtasks <= 0 {
		maxSubtasks = DefaultMaxSubtasks
	}
	return &Decomposer{
		llm:         provider,
		maxSubtasks: maxSubtasks,
		log:         logging.Component("retrieval.decompose"),
	}
}

// Decompose returns the searchable subtasks for a query. Simple intents
// and every failure path return the original query as the only subtask.
func (d *Decomposer) Decompose(ctx context.Context, query string, intent *QueryIntent) []string {
	if intent == nil || intent.Type == QueryTypeSimple {
		return []string{query}
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: d.systemPrompt()},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Query: %s\nIntent: %s", query, intent.Intent)},
	}

	completion, err := d.llm.Complete(ctx, messages,
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(400),
		llm.WithJSONResponse(),
	)
	if err != nil {
		d.log.WithError(err).Warn("decomposition failed, using original query")
		return []string{query}
	}

	subtasks, err := d.parseSubtasksResponse(completion.Content)
	if err != nil || len(subtasks) == 0 {
		d.log.WithError(err).Warn("decomposition response unparseable, using original query")
		return []string{query}
	}

	if len(subtasks) > d.maxSubtasks {
		subtasks = subtasks[:d.maxSubtasks]
	}
	return subtasks
}

func (d *Decomposer) systemPrompt() string {
	return fmt.Sprintf(`You split a debt-collection agent's question into independently searchable sub-queries for a vector memory of past interactions and strategies.

Rules:
- Each subtask must stand alone as a search query.
- At most %d subtasks.
- Do not invent aspects the query does not ask about.

Return JSON only:
{"subtasks": ["<sub-query>", ...]}`, d.maxSubtasks)
}

func (d *Decomposer) parseSubtasksResponse(response string) ([]string, error) {
	cleaned := llm.CleanJSONResponse(response)

	var result struct {
		Subtasks []string `json:"subtasks"`
	}
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	subtasks := make([]string, 0, len(result.Subtasks))
	for _, task := range result.Subtasks {
		if trimmed := strings.TrimSpace(task); trimmed != "" {
			subtasks = append(subtasks, trimmed)
		}
	}
	return subtasks, nil
}
