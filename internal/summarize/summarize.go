// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize turns a literature record into a structured summary
// without any network or model calls. Records with extracted full text get
// extractive key points; metadata-only records get a clearly labeled
// placeholder.
package summarize

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/litpipe/pkg/types"
)

// MetadataPrefix marks headlines of summaries not derived from full text.
const MetadataPrefix = "[metadata-derived]"

// manualReview is the recommendation attached to every metadata summary.
const manualReview = "Manual review of the full text is recommended before relying on this record."

// leadSentences bounds how much leading text is considered when the text
// has no abstract-like section.
const leadSentences = 40

// minSentenceWords drops headings and fragments from the candidate pool.
const minSentenceWords = 5

// abstractHeadings open an abstract-like section.
var abstractHeadings = map[string]bool{
	"abstract": true,
	"summary":  true,
}

// knownHeadings close an abstract-like section.
var knownHeadings = map[string]bool{
	"abstract":              true,
	"summary":               true,
	"keywords":              true,
	"introduction":          true,
	"background":            true,
	"methods":               true,
	"materials and methods": true,
	"results":               true,
	"discussion":            true,
	"conclusion":            true,
	"conclusions":           true,
	"references":            true,
	"acknowledgements":      true,
	"acknowledgments":       true,
}

// stopwords are ignored when building scoring terms.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "were": true,
	"its": true, "into": true, "their": true, "based": true, "using": true,
	"study": true, "among": true, "between": true, "review": true,
}

// Summarizer produces deterministic summaries from configured heuristics.
type Summarizer struct {
	cfg types.SummaryConfig
}

// New returns a Summarizer, filling zero-valued limits with defaults.
func New(cfg types.SummaryConfig) *Summarizer {
	def := types.DefaultPipelineConfig().Summary
	if cfg.KeyPoints <= 0 {
		cfg.KeyPoints = def.KeyPoints
	}
	if cfg.MaxPointWords <= 0 {
		cfg.MaxPointWords = def.MaxPointWords
	}
	if cfg.CuePhrases == nil {
		cfg.CuePhrases = def.CuePhrases
	}
	return &Summarizer{cfg: cfg}
}

// Apply summarizes rec in place and extends its keyword set.
func (s *Summarizer) Apply(rec *types.LiteratureRecord, query string) {
	sum := s.Summarize(rec, query)
	rec.Summary = &sum
	rec.Keywords = s.Keywords(rec, sum)
}

// Summarize builds the summary for rec. The result always has a headline
// and at least one key point.
func (s *Summarizer) Summarize(rec *types.LiteratureRecord, query string) types.Summary {
	if rec.TextSource == types.TextSourceFulltext && strings.TrimSpace(rec.Fulltext) != "" {
		points := s.keyPoints(rec, query)
		if len(points) == 0 {
			points = s.leadingLines(rec)
		}
		if len(points) > 0 {
			return types.Summary{
				Headline:   headline(rec),
				KeyPoints:  points,
				Derivation: types.TextSourceFulltext,
				Verified:   true,
			}
		}
	}
	return s.placeholder(rec)
}

// Keywords returns the record keywords plus every configured label whose
// needle occurs in the title or summary text.
func (s *Summarizer) Keywords(rec *types.LiteratureRecord, sum types.Summary) []string {
	text := strings.ToLower(rec.Title + " " + sum.Headline + " " + strings.Join(sum.KeyPoints, " "))
	out := append([]string(nil), rec.Keywords...)
	for needle, label := range s.cfg.KeywordMap {
		if needle != "" && strings.Contains(text, strings.ToLower(needle)) {
			out = append(out, label)
		}
	}
	return types.KeywordSet(out)
}

func headline(rec *types.LiteratureRecord) string {
	var meta []string
	if rec.Journal != "" {
		meta = append(meta, rec.Journal)
	}
	if rec.Year > 0 {
		meta = append(meta, fmt.Sprint(rec.Year))
	}
	if len(meta) == 0 {
		return rec.Title
	}
	return fmt.Sprintf("%s (%s)", rec.Title, strings.Join(meta, ", "))
}

func (s *Summarizer) placeholder(rec *types.LiteratureRecord) types.Summary {
	points := []string{"Full text was not retrieved; this summary is derived from bibliographic metadata only."}

	inferred := s.Keywords(rec, types.Summary{})
	if len(inferred) > 0 {
		points = append(points, "Topics inferred from title and keywords: "+strings.Join(inferred, ", ")+".")
	} else {
		points = append(points, "Topic inferred from title: "+rec.Title+".")
	}
	points = append(points, manualReview)

	return types.Summary{
		Headline:   MetadataPrefix + " " + headline(rec),
		KeyPoints:  points,
		Derivation: types.TextSourceMetadata,
		Verified:   false,
	}
}

type sentence struct {
	text  string
	pos   int
	score int
}

// keyPoints selects the highest scoring sentences of the abstract-like
// section and returns them in source order.
func (s *Summarizer) keyPoints(rec *types.LiteratureRecord, query string) []string {
	sents := candidateSentences(rec.Fulltext, rec.Title)
	if len(sents) == 0 {
		return nil
	}

	terms := termSet(query, rec.Title, strings.Join(rec.Keywords, " "))
	for i := range sents {
		sents[i].score = s.score(sents[i].text, terms)
	}

	ranked := append([]sentence(nil), sents...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > s.cfg.KeyPoints {
		ranked = ranked[:s.cfg.KeyPoints]
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].pos < ranked[j].pos })

	points := make([]string, len(ranked))
	for i, st := range ranked {
		points[i] = truncateWords(st.text, s.cfg.MaxPointWords)
	}
	return points
}

// leadingLines returns the first distinct body lines verbatim. It covers
// extractions made of tables or fragments with no full sentence.
func (s *Summarizer) leadingLines(rec *types.LiteratureRecord) []string {
	var points []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(rec.Fulltext, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || seen[line] || isHeading(line) || strings.EqualFold(line, strings.TrimSpace(rec.Title)) {
			continue
		}
		seen[line] = true
		points = append(points, truncateWords(line, s.cfg.MaxPointWords))
		if len(points) >= s.cfg.KeyPoints {
			break
		}
	}
	return points
}

func (s *Summarizer) score(text string, terms map[string]bool) int {
	n := 0
	hit := make(map[string]bool)
	for _, w := range words(text) {
		if terms[w] && !hit[w] {
			hit[w] = true
			n++
		}
	}
	lower := strings.ToLower(text)
	for _, cue := range s.cfg.CuePhrases {
		if cue != "" && strings.Contains(lower, strings.ToLower(cue)) {
			n += 2
		}
	}
	return n
}

// candidateSentences returns the sentences of the abstract section, or of
// the leading text when none is marked.
func candidateSentences(text, title string) []sentence {
	lines := strings.Split(text, "\n")
	section := abstractSection(lines)
	lead := section == nil
	if lead {
		section = lines
	}

	var out []sentence
	for _, line := range section {
		line = strings.TrimSpace(line)
		if line == "" || isHeading(line) || strings.EqualFold(line, strings.TrimSpace(title)) {
			continue
		}
		for _, sent := range splitSentences(line) {
			if len(strings.Fields(sent)) < minSentenceWords {
				continue
			}
			out = append(out, sentence{text: sent, pos: len(out)})
			if lead && len(out) >= leadSentences {
				return out
			}
		}
	}
	return out
}

// abstractSection returns the lines between an Abstract or Summary heading
// and the next known heading. It returns nil when there is no such heading
// or the section is empty.
func abstractSection(lines []string) []string {
	start := -1
	for i, line := range lines {
		if abstractHeadings[headingKey(line)] {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		if isHeading(lines[i]) {
			end = i
			break
		}
	}
	if end == start {
		return nil
	}
	return lines[start:end]
}

func isHeading(line string) bool {
	return knownHeadings[headingKey(line)]
}

// headingKey lowercases a line and strips section numbering and a trailing
// colon: "2. Methods:" becomes "methods".
func headingKey(line string) string {
	key := strings.ToLower(strings.TrimSpace(line))
	key = strings.TrimLeftFunc(key, func(r rune) bool {
		return unicode.IsDigit(r) || r == '.' || unicode.IsSpace(r)
	})
	return strings.TrimSpace(strings.TrimSuffix(key, ":"))
}

// splitSentences splits a paragraph after terminal punctuation followed by
// whitespace and an upper-case letter, digit, or opening quote. Full-width
// terminators always split.
func splitSentences(para string) []string {
	var out []string
	runes := []rune(para)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '。', '！', '？':
			out = appendSentence(out, runes[start:i+1])
			start = i + 1
		case '.', '!', '?':
			j := i + 1
			for j < len(runes) && (runes[j] == '"' || runes[j] == '\'' || runes[j] == ')') {
				j++
			}
			if j >= len(runes) || !unicode.IsSpace(runes[j]) {
				continue
			}
			k := j
			for k < len(runes) && unicode.IsSpace(runes[k]) {
				k++
			}
			if k < len(runes) && !(unicode.IsUpper(runes[k]) || unicode.IsDigit(runes[k]) || runes[k] == '"' || runes[k] == '(') {
				continue
			}
			out = appendSentence(out, runes[start:j])
			start = j
			i = j - 1
		}
	}
	return appendSentence(out, runes[start:])
}

func appendSentence(out []string, rs []rune) []string {
	if s := strings.TrimSpace(string(rs)); s != "" {
		out = append(out, s)
	}
	return out
}

// termSet collects lowercase scoring terms from the given texts.
func termSet(texts ...string) map[string]bool {
	terms := make(map[string]bool)
	for _, t := range texts {
		for _, w := range words(t) {
			if len([]rune(w)) >= 3 && !stopwords[w] {
				terms[w] = true
			}
		}
	}
	return terms
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-')
	})
}

// truncateWords keeps the first n whitespace-separated words of text.
func truncateWords(text string, n int) string {
	f := strings.Fields(text)
	if n <= 0 || len(f) <= n {
		return strings.Join(f, " ")
	}
	return strings.Join(f[:n], " ")
}
