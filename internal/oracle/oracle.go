package oracle

import (
	"context"

	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/shortlist"
)

// Oracle proposes one category out of a shortlisted candidate set.
//
// A nil Proposal, or one with an empty CategoryID, means "no answer". Errors
// report transport or provider failures; callers treat them as no answer too.
type Oracle interface {
	ProposeCategory(ctx context.Context, req *Request) (*Proposal, error)
	Name() string
}

// Proposal is what the oracle answered, before it is checked against the
// candidate set.
type Proposal struct {
	CategoryID   string
	CategoryName string
	Confidence   *float64
	Usage        domain.Usage
	Raw          string
}

// Answered reports whether the proposal names a category at all.
func (p *Proposal) Answered() bool {
	return p != nil && p.CategoryID != "" && p.CategoryName != ""
}

type ProductPayload struct {
	SKU         string         `json:"sku"`
	Name        string         `json:"name"`
	Brand       string         `json:"brand"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url"`
	Attributes  map[string]any `json:"attributes"`
}

type MarketplacePayload struct {
	Name          string `json:"name"`
	IDField       string `json:"id_field"`
	NameField     string `json:"name_field"`
	ChildrenField string `json:"children_field"`
}

type CandidatePayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

type OutputFormat struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Confidence   string `json:"confidence,omitempty"`
}

// Request is the document sent to the oracle for one marketplace.
type Request struct {
	Product      ProductPayload     `json:"product"`
	Marketplace  MarketplacePayload `json:"marketplace"`
	Candidates   []CandidatePayload `json:"candidates"`
	OutputFormat OutputFormat       `json:"output_format"`
	Rules        []string           `json:"rules"`

	IncludeConfidence bool `json:"-"`
}

// RequestLimits bounds the product text copied into a request.
type RequestLimits struct {
	MaxNameChars int
	MaxDescChars int
}

// NewRequest builds the oracle request for one marketplace from its
// shortlisted candidates.
func NewRequest(product domain.Product, mp domain.Marketplace, candidates []domain.Candidate, limits RequestLimits, includeConfidence bool) *Request {
	fields := mp.FieldNames.WithDefaults()

	req := &Request{
		Product: ProductPayload{
			SKU:         product.SKU,
			Name:        shortlist.Truncate(product.Name, limits.MaxNameChars),
			Brand:       product.Brand,
			Description: shortlist.Truncate(product.Description, limits.MaxDescChars),
			ImageURL:    product.ImageURL,
			Attributes:  product.Attributes,
		},
		Marketplace: MarketplacePayload{
			Name:          mp.Name,
			IDField:       fields.ID,
			NameField:     fields.Name,
			ChildrenField: fields.Children,
		},
		Candidates:        make([]CandidatePayload, len(candidates)),
		OutputFormat:      OutputFormat{CategoryID: "string", CategoryName: "string"},
		IncludeConfidence: includeConfidence,
	}
	if req.Product.Attributes == nil {
		req.Product.Attributes = map[string]any{}
	}

	for i, c := range candidates {
		req.Candidates[i] = CandidatePayload{ID: c.ID, Name: c.Name, Path: c.Path, Depth: c.Depth}
	}

	req.Rules = []string{
		"Select exactly one leaf from candidates.",
		"Prefer deeper, more specific leaves.",
		"Match product name first, then description, to leaf path/name.",
		"If ties remain, pick the earliest candidate in the list.",
		"Return ONLY JSON with keys: category_id, category_name.",
	}
	if includeConfidence {
		req.OutputFormat.Confidence = "number between 0 and 1"
		req.Rules[len(req.Rules)-1] = "Return ONLY JSON with keys: category_id, category_name, confidence."
		req.Rules = append(req.Rules, "Return a confidence score between 0 and 1 indicating certainty.")
	}

	return req
}

// noAnswer is used when no provider is configured.
type noAnswer struct{}

// NoAnswer returns an oracle that never proposes anything.
func NoAnswer() Oracle {
	return noAnswer{}
}

func (noAnswer) ProposeCategory(context.Context, *Request) (*Proposal, error) {
	return nil, nil
}

func (noAnswer) Name() string {
	return "none"
}
