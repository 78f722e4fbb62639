package oracle

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DefaultSystemPrompt is used when no prompt file is available.
const DefaultSystemPrompt = `You are a product categorization assistant for online marketplaces.
You receive one product and a list of candidate leaf categories from a single
marketplace taxonomy. Choose the one candidate that best describes the product.
Only ever answer with a candidate from the list, using its exact id and name.`

// LoadPrompt reads the system prompt from path. A missing or empty file
// falls back to DefaultSystemPrompt.
func LoadPrompt(path string) string {
	if path == "" {
		return DefaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("⚠️ Prompt file %s not readable, using built-in prompt: %v", path, err)
		return DefaultSystemPrompt
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		log.Warnf("⚠️ Prompt file %s is empty, using built-in prompt", path)
		return DefaultSystemPrompt
	}
	return prompt
}
