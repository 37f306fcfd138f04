package inference

// LabelScore is one classifier output pair. Labels arrive as the
// serving layer emits them; normalization happens in the scoring layer.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type classifyRequest struct {
	Model  string   `json:"model"`
	Inputs []string `json:"inputs"`
}

type classifyResponse struct {
	Model   string         `json:"model"`
	Results [][]LabelScore `json:"results"`
}
