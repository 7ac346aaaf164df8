package assist

import (
	_ "embed"
)

//go:embed prompts/refine.md
var refinePrompt string

//go:embed prompts/remediate.md
var remediatePrompt string
