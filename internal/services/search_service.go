package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"catalog-sync-service/internal/cache"
	"catalog-sync-service/internal/clients/location"
)

const (
	scoreExactMatch     = 100.0
	scoreSubstringMatch = 60.0
	scoreSimilarityMax  = 50.0
	urbanAreaBonus      = 10.0
	qualityThreshold    = 40.0
	fallbackScore       = 15.0

	upstreamFetchLimit = 10
	maxQueryVariants   = 8
	searchConcurrency  = 4
)

// Administrative words that carry no location identity on their own.
var adminStopwords = map[string]struct{}{
	"kota": {}, "kabupaten": {}, "kecamatan": {}, "kelurahan": {},
	"desa": {}, "provinsi": {}, "kab": {}, "kec": {}, "kel": {},
}

// Major urban areas get a small ranking bonus since queries for them
// dominate traffic.
var urbanAreas = []string{
	"jakarta", "surabaya", "bandung", "medan", "semarang",
	"makassar", "palembang", "tangerang", "depok", "bekasi",
	"bogor", "yogyakarta", "denpasar",
}

// Administrative prefixes appended as low-weight contextual variants.
var geoModifiers = []string{"kecamatan", "kelurahan"}

// SearchCandidate is one ranked structured address result.
type SearchCandidate struct {
	LocationID     string  `json:"locationId"`
	Subdistrict    string  `json:"subdistrict,omitempty"`
	District       string  `json:"district,omitempty"`
	City           string  `json:"city,omitempty"`
	Province       string  `json:"province,omitempty"`
	ZipCode        string  `json:"zipCode,omitempty"`
	Label          string  `json:"label"`
	Score          float64 `json:"score"`
	MatchedVariant string  `json:"matchedVariant"`
}

type queryVariant struct {
	text   string
	weight float64
	kind   string
}

// SearchService resolves free-text location queries into ranked
// structured address candidates. It degrades instead of failing: an
// upstream outage yields a synthetic low-confidence candidate, never
// an error.
type SearchService struct {
	locations location.Searcher
	cache     cache.Store
	cacheTTL  time.Duration
	log       *logrus.Entry
}

// NewSearchService creates a location search service.
func NewSearchService(locations location.Searcher, store cache.Store, cacheTTL time.Duration) *SearchService {
	return &SearchService{
		locations: locations,
		cache:     store,
		cacheTTL:  cacheTTL,
		log:       logrus.WithField("component", "search_service"),
	}
}

// Search runs the keyword through query-variant generation, concurrent
// upstream lookups, dedup and scoring, and returns at most limit
// candidates sorted by descending relevance. Output is deterministic
// for a fixed cached upstream corpus.
func (s *SearchService) Search(ctx context.Context, keyword string, limit int) []SearchCandidate {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || limit <= 0 {
		return []SearchCandidate{}
	}

	variants := generateVariants(keyword)
	hits := s.executeVariants(ctx, variants)

	candidates := s.scoreAndDedupe(keyword, hits)
	if len(candidates) == 0 {
		s.log.WithField("keyword", keyword).Warn("No candidates from any query variant, synthesizing fallback")
		candidates = []SearchCandidate{fallbackFromKeyword(keyword)}
	} else if bestScore(candidates) < qualityThreshold {
		candidates = append(candidates, fallbackFromCandidates(keyword, candidates))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Label != candidates[j].Label {
			return candidates[i].Label < candidates[j].Label
		}
		return candidates[i].LocationID < candidates[j].LocationID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// generateVariants derives weighted query variants from the keyword.
// The original query always ranks highest; derived variants are
// discounted so broad matches cannot outrank a direct hit.
func generateVariants(keyword string) []queryVariant {
	lower := strings.ToLower(keyword)
	words := strings.Fields(lower)

	variants := []queryVariant{{text: lower, weight: 1.0, kind: "original"}}
	seen := map[string]struct{}{lower: {}}

	add := func(text string, weight float64, kind string) {
		text = strings.TrimSpace(text)
		if text == "" || len(variants) >= maxQueryVariants {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		variants = append(variants, queryVariant{text: text, weight: weight, kind: kind})
	}

	cleaned := make([]string, 0, len(words))
	for _, word := range words {
		if _, stop := adminStopwords[word]; !stop {
			cleaned = append(cleaned, word)
		}
	}
	add(strings.Join(cleaned, " "), 0.9, "cleaned")

	for i := 0; i+1 < len(words); i++ {
		add(words[i]+" "+words[i+1], 0.8, "bigram")
	}

	for _, word := range words {
		if len(word) > 3 {
			add(word, 0.6, "word")
		}
	}

	if len(cleaned) > 0 {
		base := strings.Join(cleaned, " ")
		for _, modifier := range geoModifiers {
			add(modifier+" "+base, 0.5, "contextual")
		}
	}

	return variants
}

type variantHit struct {
	record  location.Record
	variant queryVariant
}

// executeVariants fans the variants out through the cache with bounded
// concurrency. A failing variant is dropped; the others still count.
func (s *SearchService) executeVariants(ctx context.Context, variants []queryVariant) []variantHit {
	var mu sync.Mutex
	hits := make([]variantHit, 0)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(searchConcurrency)

	for _, variant := range variants {
		variant := variant
		group.Go(func() error {
			signature := cache.Signature("location_search", map[string]string{
				"q":     variant.text,
				"limit": strconv.Itoa(upstreamFetchLimit),
			})
			payload, err := s.cache.GetOrFetch(ctx, signature, s.cacheTTL, func(ctx context.Context) (interface{}, error) {
				return s.locations.Search(ctx, variant.text, upstreamFetchLimit, 0)
			})
			if err != nil {
				s.log.WithError(err).WithField("variant", variant.text).Warn("Query variant failed")
				return nil
			}
			records, ok := payload.([]location.Record)
			if !ok {
				return nil
			}

			mu.Lock()
			for _, record := range records {
				hits = append(hits, variantHit{record: record, variant: variant})
			}
			mu.Unlock()
			return nil
		})
	}
	group.Wait()
	return hits
}

// scoreAndDedupe collapses hits onto (id, label) pairs keeping the
// best weighted score per candidate.
func (s *SearchService) scoreAndDedupe(keyword string, hits []variantHit) []SearchCandidate {
	best := make(map[string]SearchCandidate)
	for _, hit := range hits {
		score := scoreRecord(keyword, hit.record) * hit.variant.weight
		key := hit.record.ID + "\x00" + hit.record.Label
		if current, exists := best[key]; !exists || score > current.Score {
			best[key] = SearchCandidate{
				LocationID:     hit.record.ID,
				Subdistrict:    hit.record.Subdistrict,
				District:       hit.record.District,
				City:           hit.record.City,
				Province:       hit.record.Province,
				ZipCode:        hit.record.ZipCode,
				Label:          hit.record.Label,
				Score:          score,
				MatchedVariant: hit.variant.kind,
			}
		}
	}

	candidates := make([]SearchCandidate, 0, len(best))
	for _, candidate := range best {
		candidates = append(candidates, candidate)
	}
	return candidates
}

// scoreRecord rates one record against the original keyword. The best
// matching field wins; an exact field match dominates everything else.
func scoreRecord(keyword string, record location.Record) float64 {
	keyword = strings.ToLower(keyword)
	fields := []string{
		record.Subdistrict, record.District, record.City,
		record.Province, record.Label,
	}

	score := 0.0
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}

		fieldScore := 0.0
		switch {
		case field == keyword:
			fieldScore = scoreExactMatch
		case strings.Contains(field, keyword) || strings.Contains(keyword, field):
			fieldScore = scoreSubstringMatch
		default:
			fieldScore = levenshtein.Similarity(keyword, field, nil) * scoreSimilarityMax
		}
		if fieldScore > score {
			score = fieldScore
		}
	}

	haystack := strings.ToLower(record.City + " " + record.Province + " " + record.Label)
	for _, urban := range urbanAreas {
		if strings.Contains(haystack, urban) {
			score += urbanAreaBonus
			break
		}
	}
	return score
}

func bestScore(candidates []SearchCandidate) float64 {
	best := 0.0
	for _, candidate := range candidates {
		if candidate.Score > best {
			best = candidate.Score
		}
	}
	return best
}

// fallbackFromKeyword synthesizes the degraded-mode candidate used
// when every upstream call failed.
func fallbackFromKeyword(keyword string) SearchCandidate {
	return SearchCandidate{
		Label:          titleCase(keyword),
		Score:          fallbackScore,
		MatchedVariant: "fallback",
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// fallbackFromCandidates synthesizes a low-confidence candidate from
// the most common field values when no real candidate clears the
// quality threshold.
func fallbackFromCandidates(keyword string, candidates []SearchCandidate) SearchCandidate {
	city := mostCommon(candidates, func(c SearchCandidate) string { return c.City })
	province := mostCommon(candidates, func(c SearchCandidate) string { return c.Province })

	label := titleCase(keyword)
	if city != "" {
		label += ", " + city
	}
	return SearchCandidate{
		City:           city,
		Province:       province,
		Label:          label,
		Score:          fallbackScore,
		MatchedVariant: "fallback",
	}
}

func mostCommon(candidates []SearchCandidate, field func(SearchCandidate) string) string {
	counts := make(map[string]int)
	for _, candidate := range candidates {
		if value := field(candidate); value != "" {
			counts[value]++
		}
	}

	best, bestCount := "", 0
	for value, count := range counts {
		if count > bestCount || (count == bestCount && value < best) {
			best, bestCount = value, count
		}
	}
	return best
}
