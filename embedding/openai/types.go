package openai

// EmbeddingRequest represents the request body for OpenAI embedding API
type EmbeddingRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	EncodingFormat string `json:"encoding_format"`
	Dimensions     int32  `json:"dimensions,omitempty"`
}

// EmbeddingResponse represents the response from OpenAI embedding API
type EmbeddingResponse struct {
	Data []struct {
		Index     int32     `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}
