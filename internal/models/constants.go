package models

const (
	// ContextDelimiter joins retrieved passages into the synthesis context
	ContextDelimiter = "."

	DefaultMinResults = 2
	DefaultMaxResults = 5

	DefaultChunkSize    = 8191
	DefaultChunkOverlap = 200
	DefaultBatchSize    = 150

	DefaultVectorizer = "text2vec-openai"
	ContentProperty   = "content"
)

var DefaultVectorizerModules = []string{"text2vec-openai", "generative-openai"}

// system roles
const (
	VectorSpecialistRole = "You are a Vector Database Specialist. Your primary responsibility is to develop and optimize algorithms for parsing user prompts and generating efficient queries for vector databases. Leveraging your expertise in natural language processing (NLP) and database management, you will play a crucial role in enabling seamless interaction between users and the vector database, ensuring accurate and relevant responses to user queries."

	TaxLegalExpertRole = "You are a Legal Expert for Indonesian Tax Statutory Rules, your primary responsibility is to provide accurate, reliable, and up-to-date information on Indonesian tax laws and regulations where the data of the laws will be provided along with the prompt. You will serve as a virtual legal expert, assisting users with inquiries, interpretations, and explanations related to tax statutory rules in Indonesia."

	AssistantRole = "You are a intelligent assistant."
)

var (
	// PlanPromptTemplate takes min results, max results and the question
	PlanPromptTemplate = `I want you to transform the question below into an optimized query for a vector database, along with the number of results that should be retrieved, and return them as a JSON object.
The JSON object must have exactly 2 properties:
- "query": a string containing the optimized search query
- "num_results": an integer between %d and %d, use a bigger number when the question is more complex
Example: {"query": "Sistem perpajakan di indonesia", "num_results": 2}
The vector database contains Indonesian tax statutory rules written in the Indonesian language.
Here is the question: %s`

	// AnswerPromptTemplate takes the joined context and the question
	AnswerPromptTemplate = `I have this question which you need to answer with indonesian language based on the given information. Don't try to answer the question if the answer is not exists in any of relevant informations below.
here is the relevant informations: %s
Here is the question: %s`
)
