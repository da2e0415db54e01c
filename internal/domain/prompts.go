package domain

// PromptCatalog holds the system prompts injected per operation, loaded once
// at construction and shared by reference.
type PromptCatalog struct {
	chatSystem   string
	visionSystem string
}

// NewPromptCatalog creates a catalog with explicit prompts. Empty strings
// fall back to the defaults.
func NewPromptCatalog(chatSystem, visionSystem string) *PromptCatalog {
	c := DefaultPromptCatalog()
	if chatSystem != "" {
		c.chatSystem = chatSystem
	}
	if visionSystem != "" {
		c.visionSystem = visionSystem
	}
	return c
}

// DefaultPromptCatalog returns the built-in prompts.
func DefaultPromptCatalog() *PromptCatalog {
	return &PromptCatalog{
		chatSystem:   "You are a concise and helpful assistant.",
		visionSystem: "You are an image analyst. Describe what the attached image shows and answer the user's question about it.",
	}
}

// ChatSystem returns the system prompt for chat completions.
func (c *PromptCatalog) ChatSystem() string { return c.chatSystem }

// VisionSystem returns the system prompt for image analysis.
func (c *PromptCatalog) VisionSystem() string { return c.visionSystem }
