package model

// QuestionSpec is one signalling question of the loaded checklist
type QuestionSpec struct {
	ID   string `json:"id" yaml:"id" validate:"required"`
	Text string `json:"text" yaml:"text" validate:"required"`
}

// Study is the input to one pipeline run
type Study struct {
	ID   string // Study identifier written to the result (e.g., "smith_2022")
	Text string // Raw plain-text document
}

// QuestionIDs returns the ids of qs in order
func QuestionIDs(qs []QuestionSpec) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}
