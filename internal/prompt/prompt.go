// Package prompt builds the single-turn prompt sent to the generative model.
package prompt

import "fmt"

// Build embeds the user query and the retrieved context in one prompt.
// Extra instructions, when set, follow the context.
func Build(query, context, instructions string) string {
	p := fmt.Sprintf("User query: %s\nContext: %s", query, context)
	if instructions != "" {
		p += " " + instructions
	}
	return p
}
