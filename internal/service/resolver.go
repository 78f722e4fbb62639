package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/oracle"
	"marketplace/categorizer/internal/shortlist"
	"marketplace/categorizer/internal/taxonomy"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownMarketplace = errors.New("unknown marketplace")

// Options scope one categorization request.
type Options struct {
	// Marketplace restricts the request to one registry entry when set.
	Marketplace       string
	IncludeConfidence bool
}

// Settings bound the work done per marketplace.
type Settings struct {
	ShortlistMax int
	MaxNameChars int
	MaxDescChars int
	MaxParallel  int
}

// Stats counts resolver activity since start.
type Stats struct {
	Resolutions int64 `json:"resolutions"`
	Skipped     int64 `json:"skipped"`
	Shortlists  int64 `json:"shortlists"`
	OracleCalls int64 `json:"oracle_calls"`
	Matched     int64 `json:"matched"`
	Fallbacks   int64 `json:"fallbacks"`
}

// Resolver assigns a product to one leaf category per marketplace.
type Resolver struct {
	catalog     atomic.Pointer[Catalog]
	oracle      oracle.Oracle
	shortlister *shortlist.Shortlister
	settings    Settings

	resolutions atomic.Int64
	skipped     atomic.Int64
	shortlists  atomic.Int64
	oracleCalls atomic.Int64
	matched     atomic.Int64
	fallbacks   atomic.Int64
}

func NewResolver(catalog *Catalog, o oracle.Oracle, settings Settings) *Resolver {
	if o == nil {
		o = oracle.NoAnswer()
	}
	if settings.ShortlistMax < 1 {
		settings.ShortlistMax = 1
	}

	r := &Resolver{
		oracle:      o,
		shortlister: shortlist.New(settings.MaxNameChars, settings.MaxDescChars),
		settings:    settings,
	}
	r.Swap(catalog)
	return r
}

// Catalog returns the live registry generation.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog.Load()
}

// Swap publishes a new registry generation. In-flight requests keep the
// generation they started with.
func (r *Resolver) Swap(catalog *Catalog) {
	if catalog == nil {
		catalog = &Catalog{}
	}
	r.catalog.Store(catalog)
}

func (r *Resolver) OracleName() string {
	return r.oracle.Name()
}

func (r *Resolver) Stats() Stats {
	return Stats{
		Resolutions: r.resolutions.Load(),
		Skipped:     r.skipped.Load(),
		Shortlists:  r.shortlists.Load(),
		OracleCalls: r.oracleCalls.Load(),
		Matched:     r.matched.Load(),
		Fallbacks:   r.fallbacks.Load(),
	}
}

// Resolve categorizes a product in every marketplace of the registry, or in
// the one named by opts. Every selected marketplace yields exactly one
// assignment, in registry order; only an invalid product or an unknown
// marketplace name fail the call.
func (r *Resolver) Resolve(ctx context.Context, product domain.Product, opts Options) (*domain.CategorizationResponse, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}

	catalog := r.Catalog()
	marketplaces := catalog.Marketplaces
	if opts.Marketplace != "" {
		mp, ok := catalog.Find(opts.Marketplace)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMarketplace, opts.Marketplace)
		}
		marketplaces = []domain.Marketplace{mp}
	}

	product.Description = shortlist.PlainText(product.Description)

	assignments := make([]domain.Assignment, len(marketplaces))
	usages := make([]domain.Usage, len(marketplaces))

	g := new(errgroup.Group)
	if r.settings.MaxParallel > 0 {
		g.SetLimit(r.settings.MaxParallel)
	}
	for i, mp := range marketplaces {
		g.Go(func() error {
			assignments[i], usages[i] = r.resolveIsolated(ctx, catalog, product, mp, opts)
			return nil
		})
	}
	_ = g.Wait()

	resp := &domain.CategorizationResponse{SKU: product.SKU, Categories: assignments}
	for _, u := range usages {
		resp.Usage = resp.Usage.Add(u)
	}
	return resp, nil
}

// resolveIsolated keeps a panic in one marketplace from taking down the
// others; the marketplace is reported as unmapped instead.
func (r *Resolver) resolveIsolated(ctx context.Context, catalog *Catalog, product domain.Product, mp domain.Marketplace, opts Options) (a domain.Assignment, u domain.Usage) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("❌ Resolution for %s @ %s panicked: %v", product.SKU, mp.Name, rec)
			a, u = domain.UnmappedAssignment(mp.Name), domain.Usage{}
		}
	}()
	return r.ResolveMarketplace(ctx, catalog, product, mp, opts)
}

// ResolveMarketplace runs the resolution for one marketplace: skip when the
// taxonomy source is missing, shortlist the leaves, consult the oracle once,
// bind its answer to a shortlisted candidate, or fall back to the top one.
func (r *Resolver) ResolveMarketplace(ctx context.Context, catalog *Catalog, product domain.Product, mp domain.Marketplace, opts Options) (domain.Assignment, domain.Usage) {
	r.resolutions.Add(1)

	if !taxonomy.SourceExists(mp.TaxonomyFile) {
		r.skipped.Add(1)
		log.Warnf("⚠️ Skipping %s: taxonomy file not found: %s", mp.Name, mp.TaxonomyFile)
		return domain.SkippedAssignment(mp.Name, mp.TaxonomyFile), domain.Usage{}
	}

	leaves, err := catalog.Leaves(mp)
	if err != nil {
		if errors.Is(err, taxonomy.ErrSourceNotFound) {
			r.skipped.Add(1)
			return domain.SkippedAssignment(mp.Name, mp.TaxonomyFile), domain.Usage{}
		}
		log.Errorf("❌ Failed to load taxonomy for %s: %v", mp.Name, err)
		return domain.UnmappedAssignment(mp.Name), domain.Usage{}
	}
	if len(leaves) == 0 {
		return domain.UnmappedAssignment(mp.Name), domain.Usage{}
	}

	r.shortlists.Add(1)
	candidates := r.shortlister.Top(product.Name, product.Description, leaves, r.settings.ShortlistMax)
	if len(candidates) == 0 {
		return domain.UnmappedAssignment(mp.Name), domain.Usage{}
	}

	req := oracle.NewRequest(product, mp, candidates, oracle.RequestLimits{
		MaxNameChars: r.settings.MaxNameChars,
		MaxDescChars: r.settings.MaxDescChars,
	}, opts.IncludeConfidence)

	r.oracleCalls.Add(1)
	proposal, err := r.oracle.ProposeCategory(ctx, req)
	if err != nil {
		log.Warnf("⚠️ Oracle %s failed for %s @ %s: %v", r.oracle.Name(), product.SKU, mp.Name, err)
		proposal = nil
	}

	var usage domain.Usage
	if proposal != nil {
		usage = proposal.Usage
	}

	if leaf, ok := BindProposal(candidates, proposal); ok {
		r.matched.Add(1)
		var confidence *float64
		if opts.IncludeConfidence {
			confidence = proposal.Confidence
		}
		return domain.AssignLeaf(mp.Name, leaf, confidence), usage
	}

	r.fallbacks.Add(1)
	log.Debugf("Fallback used for %s @ %s; candidates=%d", product.SKU, mp.Name, len(candidates))
	return domain.AssignLeaf(mp.Name, candidates[0].Leaf, nil), usage
}

// BindProposal maps an oracle answer onto the shortlisted candidate it names:
// by exact id first, then by case-insensitive name. The first matching
// candidate wins. Answers naming anything outside the shortlist are rejected.
func BindProposal(candidates []domain.Candidate, proposal *oracle.Proposal) (domain.Leaf, bool) {
	if !proposal.Answered() {
		return domain.Leaf{}, false
	}

	for _, c := range candidates {
		if c.ID == proposal.CategoryID {
			return c.Leaf, true
		}
	}

	name := strings.ToLower(strings.TrimSpace(proposal.CategoryName))
	for _, c := range candidates {
		if strings.ToLower(strings.TrimSpace(c.Name)) == name {
			return c.Leaf, true
		}
	}

	return domain.Leaf{}, false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
