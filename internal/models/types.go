package models

// Chunk represents a bounded span of extracted text
type Chunk struct {
	Content string
	Index   int
	Source  string
}

// QueryPlan is the planner's reformulation of a user question
type QueryPlan struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

// PromptResponse traces one question through plan, retrieve and synthesize
type PromptResponse struct {
	Query    string     `json:"query"`
	Plan     *QueryPlan `json:"plan,omitempty"`
	Passages []string   `json:"passages"`
	Context  string     `json:"context"`
	Content  string     `json:"content"`
}

// Message is one turn of a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
