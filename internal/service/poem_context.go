package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/llm"
	"poetry-tutor/internal/repository"
)

const (
	headerPoemContext = "POEM DATABASE CONTEXT:"
	headerRandomPoem  = "RANDOM POEM FROM DATABASE:"

	summariesPerDynasty = 5
	contextSearchLimit  = 3
	minKeywordLength    = 3
)

var (
	poemKeywords = []string{
		"poem", "poetry", "verse", "stanza", "couplet", "quatrain", "author", "poet",
		"dynasty", "chinese", "ancient", "classical", "tang", "song", "ming", "qing",
		"yuan", "han", "jin", "诗", "词", "唐诗", "宋词", "元曲", "诗人", "作者", "朝代",
		"li bai", "李白", "du fu", "杜甫", "wang wei", "王维", "meng haoran", "孟浩然",
		"bai juyi", "白居易",
	}
	overviewMarkers = []string{"database", "how many", "list", "what poems"}
	formatMarkers   = []string{"json", "format", "stored"}

	stopwords = map[string]struct{}{}

	reQuoted      = regexp.MustCompile(`["'“‘](.+?)["'”’]`)
	reCJKQuoted   = regexp.MustCompile(`[「《](.+?)[」》]`)
	reKeywordTrim = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()?]")
)

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for with about is are was were be been
		being by from that this these those what which who whom whose when where why how can could do does
		did have has had i you he she it we they me him her us them tell show give poem poems`) {
		stopwords[w] = struct{}{}
	}
}

// PoemContextService arma el bloque de contexto con poemas de la base.
type PoemContextService struct {
	poems    repository.PoemRepository
	embedder llm.Embedder
	logger   *zap.Logger
}

// NewPoemContextService acepta embedder nil: la búsqueda semántica queda desactivada.
func NewPoemContextService(poems repository.PoemRepository, embedder llm.Embedder, logger *zap.Logger) *PoemContextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoemContextService{poems: poems, embedder: embedder, logger: logger}
}

// Context solo devuelve error si el contexto de la request se canceló; los
// fallos de búsqueda se loguean y producen "".
func (s *PoemContextService) Context(ctx context.Context, userMessage string) (string, error) {
	if s == nil || s.poems == nil {
		return "", nil
	}
	out, err := s.build(ctx, userMessage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		s.logger.Warn("poem context lookup failed", zap.Error(err))
		return "", nil
	}
	return out, nil
}

func (s *PoemContextService) build(ctx context.Context, userMessage string) (string, error) {
	msg := strings.ToLower(userMessage)
	if !IsPoemRelated(msg) {
		return "", nil
	}

	if containsAny(msg, overviewMarkers...) {
		return s.overview(ctx)
	}

	if term := QuotedTerm(userMessage); term != "" {
		poem, err := s.poems.FindExact(ctx, term)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return headerPoemContext + "\n\n" + formatPoem(poem, containsAny(msg, formatMarkers...)), nil
	}

	if isRandomRequest(msg) {
		poem, err := s.poems.Random(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return headerRandomPoem + "\n\n" + formatPoem(poem, true), nil
	}

	poems, err := s.poems.SearchKeywords(ctx, ExtractKeywords(userMessage), contextSearchLimit)
	if err != nil {
		return "", err
	}
	if len(poems) == 0 && s.embedder != nil {
		poems, err = s.similar(ctx, userMessage)
		if err != nil {
			return "", err
		}
	}
	if len(poems) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString(headerPoemContext + "\n\n")
	for i, p := range poems {
		fmt.Fprintf(&b, "POEM %d:\n", i+1)
		b.WriteString(formatPoem(p, false))
	}
	return b.String(), nil
}

func (s *PoemContextService) overview(ctx context.Context) (string, error) {
	summaries, err := s.poems.SummariesByDynasty(ctx, summariesPerDynasty)
	if err != nil {
		return "", err
	}
	total, err := s.poems.Count(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nThe database holds %d poems.\n", headerPoemContext, total)
	current := "\x00"
	for _, p := range summaries {
		if p.Dynasty != current {
			current = p.Dynasty
			dyn := current
			if dyn == "" {
				dyn = "Unknown"
			}
			fmt.Fprintf(&b, "\n%s dynasty:\n", dyn)
		}
		fmt.Fprintf(&b, "- %s (%s)\n", p.Title, p.Author)
	}
	return b.String(), nil
}

func (s *PoemContextService) similar(ctx context.Context, text string) ([]domain.Poem, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.poems.SearchSimilar(ctx, pgvector.NewVector(vec), contextSearchLimit)
}

// IsPoemRelated espera el mensaje ya en minúsculas.
func IsPoemRelated(msg string) bool {
	if containsAny(msg, "json", "format", "data structure", "raw data") && containsAny(msg, "poem", "title") {
		return true
	}
	if strings.Contains(msg, "database") && containsAny(msg, "title", "collection") {
		return true
	}
	return containsAny(msg, poemKeywords...)
}

// QuotedTerm devuelve el primer texto entre comillas o 《》.
func QuotedTerm(msg string) string {
	for _, re := range []*regexp.Regexp{reCJKQuoted, reQuoted} {
		if m := re.FindStringSubmatch(msg); len(m) == 2 {
			if t := strings.TrimSpace(m[1]); t != "" {
				return t
			}
		}
	}
	return ""
}

// ExtractKeywords quita puntuación y stopwords; conserva palabras de 3+ caracteres.
func ExtractKeywords(msg string) []string {
	cleaned := reKeywordTrim.ReplaceAllString(strings.ToLower(msg), " ")
	var out []string
	seen := map[string]struct{}{}
	for _, w := range strings.Fields(cleaned) {
		if _, stop := stopwords[w]; stop || len([]rune(w)) < minKeywordLength {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func isRandomRequest(msg string) bool {
	return strings.Contains(msg, "随机") ||
		(strings.Contains(msg, "random") && strings.Contains(msg, "poem")) ||
		strings.Contains(msg, "any poem")
}

func formatPoem(p domain.Poem, withJSON bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nAuthor: %s\nDynasty: %s\nLines:\n", p.Title, p.Author, p.Dynasty)
	for i, l := range p.Lines {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, l.Chinese)
		if l.Pinyin != "" {
			fmt.Fprintf(&b, "     Pinyin: %s\n", l.Pinyin)
		}
		if l.Translation != "" {
			fmt.Fprintf(&b, "     Translation: %s\n", l.Translation)
		}
		if l.Explanation != "" {
			fmt.Fprintf(&b, "     Line Explanation: %s\n", l.Explanation)
		}
	}
	if p.Explanation != "" {
		fmt.Fprintf(&b, "Explanation: %s\n", p.Explanation)
	}
	if p.HistoricalCulturalContext != "" {
		fmt.Fprintf(&b, "Historical & Cultural Context: %s\n", p.HistoricalCulturalContext)
	}
	b.WriteString("\n")
	if withJSON {
		view := p
		view.AudioResources = nil
		if data, err := json.MarshalIndent(view, "", "  "); err == nil {
			b.WriteString("JSON FORMAT:\n```json\n")
			b.Write(data)
			b.WriteString("\n```\n\n")
			b.WriteString("INSTRUCTION: When asked for JSON format, provide the data exactly as shown in the JSON FORMAT section above.\n")
		}
	}
	return b.String()
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
