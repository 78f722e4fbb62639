package domain

import "fmt"

const (
	Unmapped      = "UNMAPPED"
	NotApplicable = "N/A"
)

// Assignment is the category chosen for a product in one marketplace.
// CategoryPath is always set; it is "N/A" when nothing could be mapped.
type Assignment struct {
	Marketplace  string   `json:"marketplace"`
	CategoryName string   `json:"category_name"`
	CategoryID   string   `json:"category_id"`
	CategoryPath string   `json:"category_path"`
	Confidence   *float64 `json:"confidence"`
	Note         *string  `json:"note"`
}

// UnmappedAssignment is the result for a marketplace whose taxonomy has no leaves.
func UnmappedAssignment(marketplace string) Assignment {
	return Assignment{
		Marketplace:  marketplace,
		CategoryName: Unmapped,
		CategoryID:   NotApplicable,
		CategoryPath: NotApplicable,
	}
}

// SkippedAssignment is the result for a marketplace whose taxonomy source is missing.
func SkippedAssignment(marketplace, taxonomyFile string) Assignment {
	a := UnmappedAssignment(marketplace)
	note := fmt.Sprintf("Taxonomy file not found: %s", taxonomyFile)
	a.Note = &note
	return a
}

// AssignLeaf binds an assignment to a shortlisted leaf.
func AssignLeaf(marketplace string, leaf Leaf, confidence *float64) Assignment {
	return Assignment{
		Marketplace:  marketplace,
		CategoryName: leaf.Name,
		CategoryID:   leaf.ID,
		CategoryPath: leaf.Path,
		Confidence:   confidence,
	}
}

// Skipped reports whether the marketplace was skipped for a missing source.
func (a Assignment) Skipped() bool {
	return a.Note != nil
}

// Mapped reports whether the assignment points at a real leaf.
func (a Assignment) Mapped() bool {
	return a.CategoryName != Unmapped || a.CategoryID != NotApplicable
}

// Usage counts oracle tokens.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// CategorizationResponse holds one assignment per resolved marketplace.
type CategorizationResponse struct {
	SKU        string       `json:"sku"`
	Categories []Assignment `json:"categories"`
	Usage      Usage        `json:"usage"`
}
