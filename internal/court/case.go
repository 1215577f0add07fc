package court

// Case is the shared, read-only input of the evidence stage.
type Case struct {
	Repository string `json:"repository"`
	Report     string `json:"report"`
}

// Dimension is the part of a rubric criterion that judges need to see.
type Dimension struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Target Category `json:"target"`
	// Keywords narrow which claims in the target category bear on this
	// dimension. Empty means every item in the category does.
	Keywords []string `json:"keywords,omitempty"`
}

// Brief is the shared, read-only input of the opinion stage: the frozen
// evidence plus the dimensions to evaluate.
type Brief struct {
	Evidence   *EvidenceView
	Dimensions []Dimension
	Scale      Scale
}
