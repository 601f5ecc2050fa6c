// Package cluster groups near-duplicate articles into clusters using an
// exact repost fast path, entity/ticker overlap, and MinHash/LSH
// candidate lookup confirmed by SimHash distance or Jaccard similarity.
package cluster

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"github.com/feedwire/newswire-bot/internal/core/domain"
	"github.com/feedwire/newswire-bot/internal/process/dedup"
)

// Tokenizer produces the normalized token stream an article is shingled
// from. Implemented by the ingestion layer.
type Tokenizer interface {
	TokensForShingles(title, summary string) []string
}

// CanonicalPicker chooses the better of two articles to represent a
// cluster. A nil current article means the candidate is the first member.
type CanonicalPicker interface {
	Choose(current *domain.Article, candidate domain.Article) domain.Article
}

// PickerFunc adapts a function to the CanonicalPicker interface.
type PickerFunc func(current *domain.Article, candidate domain.Article) domain.Article

// Choose implements CanonicalPicker.
func (f PickerFunc) Choose(current *domain.Article, candidate domain.Article) domain.Article {
	return f(current, candidate)
}

// DefaultPicker prefers the earlier publish time and breaks ties with
// the longer summary.
func DefaultPicker() CanonicalPicker {
	return PickerFunc(func(current *domain.Article, candidate domain.Article) domain.Article {
		if current == nil {
			return candidate
		}

		if candidate.PublishedAt.Before(current.PublishedAt) {
			return candidate
		}

		if candidate.PublishedAt.Equal(current.PublishedAt) && len(candidate.Summary) > len(current.Summary) {
			return candidate
		}

		return *current
	})
}

// Config controls shingling and MinHash parameters.
type Config struct {
	MinShingleSize int
	MaxShingleSize int
	NumHashes      int
	Bands          int
	Seed           int64
}

func (c *Config) applyDefaults() {
	if c.MinShingleSize <= 0 {
		c.MinShingleSize = dedup.DefaultMinShingleSize
	}

	if c.MaxShingleSize < c.MinShingleSize {
		c.MaxShingleSize = dedup.DefaultMaxShingleSize
	}

	if c.MaxShingleSize < c.MinShingleSize {
		c.MaxShingleSize = c.MinShingleSize
	}

	if c.NumHashes <= 0 {
		c.NumHashes = dedup.DefaultNumHashes
	}

	if c.Bands <= 0 {
		c.Bands = dedup.DefaultBands
	}

	if c.Seed == 0 {
		c.Seed = dedup.DefaultSeed
	}
}

// Clusterer runs clustering passes over article batches. A single pass
// is single-threaded by construction; the Clusterer itself carries no
// per-pass state and may be reused across passes.
type Clusterer struct {
	tokenizer Tokenizer
	picker    CanonicalPicker
	hasher    *dedup.MinHasher
	minSize   int
	maxSize   int
	logger    *zerolog.Logger
}

// New validates the configuration and builds a Clusterer.
func New(tokenizer Tokenizer, picker CanonicalPicker, cfg Config, logger *zerolog.Logger) (*Clusterer, error) {
	cfg.applyDefaults()

	hasher, err := dedup.NewMinHasher(cfg.NumHashes, cfg.Bands, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("minhash setup: %w", err)
	}

	if picker == nil {
		picker = DefaultPicker()
	}

	return &Clusterer{
		tokenizer: tokenizer,
		picker:    picker,
		hasher:    hasher,
		minSize:   cfg.MinShingleSize,
		maxSize:   cfg.MaxShingleSize,
		logger:    logger,
	}, nil
}

// accumulator is the mutable in-pass cluster state. The pass arena owns
// accumulators; the candidate indexes refer to them by arena id only.
type accumulator struct {
	key         string
	canonical   domain.Article
	members     []domain.Article
	shingles    map[string]struct{}
	fingerprint uint64
	signature   []uint64
	tags        map[string]struct{}
	createdAt   time.Time
}

type pass struct {
	arena      []*accumulator
	byFastHash map[string]int
	byTag      map[string][]int
	byBucket   map[string][]int
}

func newPass() *pass {
	return &pass{
		byFastHash: make(map[string]int),
		byTag:      make(map[string][]int),
		byBucket:   make(map[string][]int),
	}
}

// Cluster groups a batch of articles into finalized clusters. Articles
// are processed in ascending publish-time order so canonical-pick and
// createdAt semantics stay deterministic.
func (c *Clusterer) Cluster(articles []domain.Article) []domain.Cluster {
	ordered := make([]domain.Article, len(articles))
	copy(ordered, articles)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PublishedAt.Before(ordered[j].PublishedAt)
	})

	p := newPass()

	for _, article := range ordered {
		c.place(p, article)
	}

	clusters := p.finalize()

	if c.logger != nil {
		c.logger.Debug().
			Int("articles", len(ordered)).
			Int("clusters", len(clusters)).
			Msg("clustering pass complete")
	}

	return clusters
}

func (c *Clusterer) place(p *pass, article domain.Article) {
	tokens := c.tokenizer.TokensForShingles(article.Title, article.Summary)
	shingles := dedup.Shingles(tokens, c.minSize, c.maxSize)
	fingerprint := dedup.SimHash(shingles)
	signature := c.hasher.Signature(shingles)
	fastHash := fastMatchHash(article.Domain, article.Title)
	tags := lowerSet(article.Tags())

	// First candidate whose match test passes wins; there is no
	// best-match search across all candidates.
	for _, id := range p.candidates(fastHash, tags, c.hasher.BucketKeys(signature)) {
		if p.arena[id].matches(tags, fingerprint, shingles) {
			c.merge(p, id, article, shingles, tags, fastHash)
			return
		}
	}

	c.register(p, article, shingles, fingerprint, signature, fastHash, tags)
}

// candidates returns arena ids in priority order: exact fast-hash match,
// then clusters sharing an entity/ticker, then clusters sharing an LSH
// bucket.
func (p *pass) candidates(fastHash string, tags map[string]struct{}, bucketKeys []string) []int {
	var ids []int

	seen := make(map[int]struct{})
	add := func(id int) {
		if _, ok := seen[id]; ok {
			return
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if id, ok := p.byFastHash[fastHash]; ok {
		add(id)
	}

	for _, tag := range sortedSet(tags) {
		for _, id := range p.byTag[tag] {
			add(id)
		}
	}

	for _, key := range bucketKeys {
		for _, id := range p.byBucket[key] {
			add(id)
		}
	}

	return ids
}

// matches applies the match tests in order: entity/ticker overlap alone
// is sufficient, then SimHash distance, then exact Jaccard as the
// ambiguous-case fallback. Empty-token articles never fingerprint-match,
// so they degrade to singleton clusters.
func (a *accumulator) matches(tags map[string]struct{}, fingerprint uint64, shingles map[string]struct{}) bool {
	for tag := range tags {
		if _, ok := a.tags[tag]; ok {
			return true
		}
	}

	if len(shingles) > 0 && len(a.shingles) > 0 &&
		dedup.HammingDistance(a.fingerprint, fingerprint) <= dedup.NearDuplicateMaxHamming {
		return true
	}

	return dedup.Jaccard(a.shingles, shingles) >= dedup.JaccardMatchThreshold
}

func (c *Clusterer) merge(p *pass, id int, article domain.Article, shingles, tags map[string]struct{}, fastHash string) {
	acc := p.arena[id]
	acc.members = append(acc.members, article)

	for s := range shingles {
		acc.shingles[s] = struct{}{}
	}

	for tag := range tags {
		if _, ok := acc.tags[tag]; !ok {
			acc.tags[tag] = struct{}{}
			p.byTag[tag] = appendID(p.byTag[tag], id)
		}
	}

	// Rolling state is always recomputed from the full accumulated
	// shingle union, never incrementally approximated.
	acc.fingerprint = dedup.SimHash(acc.shingles)
	acc.signature = c.hasher.Signature(acc.shingles)

	for _, key := range c.hasher.BucketKeys(acc.signature) {
		p.byBucket[key] = appendID(p.byBucket[key], id)
	}

	// Future identical reposts of this article find the cluster directly.
	p.byFastHash[fastHash] = id

	if article.PublishedAt.Before(acc.createdAt) {
		acc.createdAt = article.PublishedAt
	}

	acc.canonical = c.picker.Choose(&acc.canonical, article)
}

func (c *Clusterer) register(p *pass, article domain.Article, shingles map[string]struct{}, fingerprint uint64, signature []uint64, fastHash string, tags map[string]struct{}) {
	id := len(p.arena)

	acc := &accumulator{
		key:         clusterKey(article),
		canonical:   c.picker.Choose(nil, article),
		members:     []domain.Article{article},
		shingles:    shingles,
		fingerprint: fingerprint,
		signature:   signature,
		tags:        tags,
		createdAt:   article.PublishedAt,
	}

	p.arena = append(p.arena, acc)
	p.byFastHash[fastHash] = id

	for tag := range tags {
		p.byTag[tag] = appendID(p.byTag[tag], id)
	}

	for _, key := range c.hasher.BucketKeys(signature) {
		p.byBucket[key] = appendID(p.byBucket[key], id)
	}
}

func (p *pass) finalize() []domain.Cluster {
	clusters := make([]domain.Cluster, 0, len(p.arena))

	for _, acc := range p.arena {
		members := make([]domain.Article, len(acc.members))
		copy(members, acc.members)

		sort.SliceStable(members, func(i, j int) bool {
			return members[i].PublishedAt.Before(members[j].PublishedAt)
		})

		clusters = append(clusters, domain.Cluster{
			Key:       acc.key,
			Canonical: acc.canonical,
			Members:   members,
			Topics:    sortedSet(acc.tags),
			CreatedAt: acc.createdAt,
		})
	}

	return clusters
}

// fastMatchHash is the cheap exact-match key for the identical-repost
// fast path: case-folded domain plus whitespace-collapsed title.
func fastMatchHash(articleDomain, title string) string {
	folder := cases.Fold()

	return folder.String(strings.TrimSpace(articleDomain)) + "|" +
		folder.String(strings.Join(strings.Fields(title), " "))
}

// clusterKey derives a stable cluster key from the first member.
func clusterKey(article domain.Article) string {
	sum := sha256.Sum256([]byte(article.Domain + "\x00" + article.ID + "\x00" + article.Title))
	return hex.EncodeToString(sum[:8])
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))

	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}

	return set
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}

	sort.Strings(out)

	return out
}

func appendID(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}

	return append(ids, id)
}
