// Package boost reorders retrieval results using content-type signals.
// When a learner asks about an image (equations, a diagram, handwritten
// notes) the plain query embedding often under-represents the implied
// subject, so the booster widens the search with domain vocabulary,
// deduplicates the merged candidates, and front-loads domain-relevant
// hits without crowding out everything else.
package boost

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/coachai/coachai/internal/knowledge"
	"github.com/coachai/coachai/internal/log"
)

// ContentType is the declared kind of content a query is about.
type ContentType string

const (
	ContentTypeGeneral     ContentType = "General Text"
	ContentTypeMath        ContentType = "Math Equations"
	ContentTypeDiagram     ContentType = "Diagram/Chart"
	ContentTypeHandwritten ContentType = "Handwritten Notes"
)

// Rich reports whether the content type carries a domain signal worth
// boosting for. Plain text does not.
func (ct ContentType) Rich() bool {
	switch ct {
	case ContentTypeMath, ContentTypeDiagram, ContentTypeHandwritten:
		return true
	}
	return false
}

// Searcher runs one ranked search. Satisfied by knowledge.Repository.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Hit, error)
}

// Corpus exposes the lesson snapshot so the booster can tell which
// subjects exist before spending widened searches on them. Satisfied by
// knowledge.Repository.
type Corpus interface {
	All() []knowledge.Lesson
}

// Config holds the reranking heuristics. The multiplier and keyword
// lists are tuning choices, not correctness requirements; see
// DefaultConfig for the stock values.
type Config struct {
	// Multiplier scales the similarity of domain-matching hits, capped
	// at 1.0.
	Multiplier float64

	// MaxQueries bounds the widened searches issued per rerank.
	MaxQueries int

	// SubjectKeywords maps a lowercase subject name to the vocabulary
	// used both to widen queries and to recognize domain-matching hits.
	SubjectKeywords map[string][]string
}

// DefaultConfig returns the stock heuristics.
func DefaultConfig() Config {
	return Config{
		Multiplier: 1.3,
		MaxQueries: 3,
		SubjectKeywords: map[string][]string{
			"mathematics": {"math", "algebra", "geometry", "calculus", "equation", "formula", "theorem", "proof"},
			"physics":     {"physics", "force", "mass", "acceleration", "velocity", "energy", "motion", "newton", "law"},
			"biology":     {"biology", "cell", "photosynthesis", "organism", "life", "dna", "protein", "evolution"},
			"chemistry":   {"chemistry", "atom", "molecule", "reaction", "acid", "base", "compound", "element"},
		},
	}
}

// subjectOrder fixes the iteration order over SubjectKeywords so the
// widened queries are deterministic.
var subjectOrder = []string{"mathematics", "physics", "biology", "chemistry"}

// visualKeywords extend the domain vocabulary for diagram queries.
var visualKeywords = []string{"diagram", "chart", "graph", "visual"}

// Booster widens and reorders search results for rich content types.
type Booster struct {
	searcher Searcher
	corpus   Corpus
	cfg      Config
	logger   *slog.Logger
}

// New creates a booster. corpus may be nil, in which case widened
// queries are built without knowledge of which subjects exist.
func New(searcher Searcher, corpus Corpus, cfg Config, logger *slog.Logger) (*Booster, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = DefaultConfig().Multiplier
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = DefaultConfig().MaxQueries
	}
	if cfg.SubjectKeywords == nil {
		cfg.SubjectKeywords = DefaultConfig().SubjectKeywords
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Booster{searcher: searcher, corpus: corpus, cfg: cfg, logger: logger}, nil
}

// Rerank decides whether the initial hits under-represent the domain
// implied by contentType and, if so, widens the search and reorders.
// It never fails: widened searches that error contribute nothing.
// Output holds at most topK hits, domain-relevant results first but
// never exclusively while others survive.
func (b *Booster) Rerank(ctx context.Context, query string, hits []knowledge.Hit, contentType ContentType, topK int) []knowledge.Hit {
	if topK < 1 || !b.triggered(hits, contentType) {
		return hits
	}

	keywords := b.domainKeywords(contentType)

	merged := make([]knowledge.Hit, len(hits))
	copy(merged, hits)

	for _, phrase := range b.widenPhrases(contentType) {
		widened, err := b.searcher.Search(ctx, query+" "+phrase, 2*topK)
		if err != nil {
			b.logger.Warn("widened search failed", "phrase", phrase, "error", err)
			continue
		}
		merged = append(merged, widened...)
	}

	merged = dedupeByTopic(merged)

	for i := range merged {
		if matchesDomain(merged[i], keywords) {
			merged[i].Similarity = math.Min(merged[i].Similarity*b.cfg.Multiplier, 1.0)
		}
	}

	return interleave(merged, keywords, topK)
}

// triggered reports whether boosting should run at all. A rich content
// type is required; plain text carries no domain signal.
func (b *Booster) triggered(hits []knowledge.Hit, contentType ContentType) bool {
	if !contentType.Rich() {
		return false
	}
	if len(hits) < 2 {
		return true
	}

	// Enough hits came back; boost only when the strongest ones show
	// no sign of the signaled domain.
	keywords := b.domainKeywords(contentType)
	for _, hit := range hits[:2] {
		if matchesDomain(hit, keywords) {
			return false
		}
	}
	return true
}

// domainKeywords returns the vocabulary that marks a hit as belonging
// to the domain the content type implies.
func (b *Booster) domainKeywords(contentType ContentType) []string {
	switch contentType {
	case ContentTypeMath:
		return b.cfg.SubjectKeywords["mathematics"]
	case ContentTypeHandwritten:
		var all []string
		for _, subject := range subjectOrder {
			all = append(all, b.cfg.SubjectKeywords[subject]...)
		}
		return all
	case ContentTypeDiagram:
		all := append([]string(nil), visualKeywords...)
		for _, subject := range subjectOrder {
			all = append(all, b.cfg.SubjectKeywords[subject]...)
		}
		return all
	}
	return nil
}

// widenPhrases builds the extra query suffixes for one content type,
// capped at MaxQueries. Subjects absent from the corpus are skipped
// when the corpus is known.
func (b *Booster) widenPhrases(contentType ContentType) []string {
	available := b.availableSubjects()

	var phrases []string
	switch contentType {
	case ContentTypeMath:
		phrases = append(phrases, "mathematics algebra geometry calculus equation formula")
		if available["physics"] {
			phrases = append(phrases, "physics mechanics kinematics")
		}
	case ContentTypeHandwritten:
		for _, subject := range subjectOrder {
			if available != nil && !available[subject] {
				continue
			}
			kw := b.cfg.SubjectKeywords[subject]
			phrases = append(phrases, subject+" "+strings.Join(head(kw, 5), " "))
		}
	case ContentTypeDiagram:
		phrases = append(phrases, "diagram chart graph visual representation illustration")
		for _, subject := range subjectOrder {
			if available != nil && !available[subject] {
				continue
			}
			kw := b.cfg.SubjectKeywords[subject]
			phrases = append(phrases, subject+" diagram "+strings.Join(head(kw, 3), " "))
		}
	}

	if len(phrases) > b.cfg.MaxQueries {
		phrases = phrases[:b.cfg.MaxQueries]
	}
	return phrases
}

// availableSubjects returns the lowercase subjects present in the
// corpus snapshot, or nil when no corpus is wired.
func (b *Booster) availableSubjects() map[string]bool {
	if b.corpus == nil {
		return nil
	}
	subjects := make(map[string]bool)
	for _, lesson := range b.corpus.All() {
		if s := strings.ToLower(strings.TrimSpace(lesson.Subject)); s != "" {
			subjects[s] = true
		}
	}
	return subjects
}

// dedupeByTopic drops later hits whose trimmed lowercase topic was
// already seen. Hits with empty topics cannot collide and are all kept.
func dedupeByTopic(hits []knowledge.Hit) []knowledge.Hit {
	seen := make(map[string]bool, len(hits))
	out := hits[:0:0]
	for _, hit := range hits {
		key := strings.ToLower(strings.TrimSpace(hit.Topic))
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, hit)
	}
	return out
}

// matchesDomain reports whether a hit's subject or topic contains any
// of the domain keywords.
func matchesDomain(hit knowledge.Hit, keywords []string) bool {
	haystack := strings.ToLower(hit.Subject + " " + hit.Topic)
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// interleave partitions hits into domain-matching and other, sorts each
// by similarity descending, and fills the result by quota: at most
// topK-1 domain hits first, then others. Remaining domain hits backfill
// unused slots so the output reaches topK whenever enough hits survive.
func interleave(hits []knowledge.Hit, keywords []string, topK int) []knowledge.Hit {
	var domain, other []knowledge.Hit
	for _, hit := range hits {
		if matchesDomain(hit, keywords) {
			domain = append(domain, hit)
		} else {
			other = append(other, hit)
		}
	}

	sort.SliceStable(domain, func(i, j int) bool { return domain[i].Similarity > domain[j].Similarity })
	sort.SliceStable(other, func(i, j int) bool { return other[i].Similarity > other[j].Similarity })

	domainCount := min(len(domain), topK-1)
	otherCount := min(len(other), topK-domainCount)

	out := make([]knowledge.Hit, 0, topK)
	out = append(out, domain[:domainCount]...)
	out = append(out, other[:otherCount]...)

	// Backfill from the domain partition when "other" ran short.
	for i := domainCount; len(out) < topK && i < len(domain); i++ {
		out = append(out, domain[i])
	}
	return out
}

func head(s []string, n int) []string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
