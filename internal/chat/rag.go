package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kishika1sei/askdesk/internal/embed"
	"github.com/kishika1sei/askdesk/internal/llm"
	"github.com/kishika1sei/askdesk/internal/model"
	"github.com/kishika1sei/askdesk/internal/vecindex"
)

// Canned user-facing messages for the short-circuit paths.
const (
	msgNotBusiness = "本件は社内業務に関する問い合わせではない可能性が高いです。業務に関する内容であれば目的や対象手続きを具体的に教えてください。"
	msgSearchWeak  = "関連資料を特定できませんでした。対象の制度・手続き名（または担当部署の心当たり）を教えてください。"
)

// Anchor phrase the prompt instructs the model to use when the retrieved
// context cannot support an answer.
const insufficientContextPhrase = "手元の資料からは判断できません"

// Options tunes one chat turn.
type Options struct {
	// TopK is the retrieval depth per scope.
	TopK int
	// ScoreThreshold is the minimum top score for retrieval to count as
	// grounded. The comparison is inclusive.
	ScoreThreshold float64
	// HistoryLimit caps the user/assistant messages loaded per turn.
	HistoryLimit int
	// ContextCharBudget and PerMessageSnippet bound the routing context
	// summary built from recent history.
	ContextCharBudget int
	PerMessageSnippet int
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		TopK:              5,
		ScoreThreshold:    0.55,
		HistoryLimit:      20,
		ContextCharBudget: 1000,
		PerMessageSnippet: 200,
	}
}

// TurnResult is the outcome of one chat turn: the answer text plus the
// metadata persisted with the message pair.
type TurnResult struct {
	Answer           string
	Reason           string // "needs_clarification", "not_business", "search_weak", or "" for answered
	RoutingMeta      map[string]any
	RetrievalMeta    map[string]any
	UsedDocumentIDs  []string
	NumContextChunks int
	Citations        []model.Citation
}

// RAGService runs one user turn to completion: routing, scoped retrieval
// with company-wide fallback, prompt assembly, and completion.
type RAGService struct {
	embedder    embed.Embedder
	search      *vecindex.Service
	client      llm.Client
	router      *RoutingService
	departments model.DepartmentCatalog
	messages    model.ChatStore
	opts        Options
	logger      *slog.Logger
}

// NewRAGService creates the chat orchestrator.
func NewRAGService(
	embedder embed.Embedder,
	search *vecindex.Service,
	client llm.Client,
	router *RoutingService,
	departments model.DepartmentCatalog,
	messages model.ChatStore,
	opts Options,
	logger *slog.Logger,
) *RAGService {
	if opts.TopK <= 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGService{
		embedder:    embedder,
		search:      search,
		client:      client,
		router:      router,
		departments: departments,
		messages:    messages,
		opts:        opts,
		logger:      logger,
	}
}

// Chat runs one turn for the session and returns the answer with its
// metadata. Nothing is persisted; Turn wraps this with message persistence.
func (s *RAGService) Chat(ctx context.Context, session *model.ChatSession, userMessage string) (*TurnResult, error) {
	deptCodes, err := s.departments.ListCodes(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.messages.RecentMessages(ctx, session.ID, s.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}

	sessionContext := s.buildSessionContext(history)

	route := s.router.Route(ctx, userMessage, deptCodes, sessionContext)
	routingMeta := route.Meta()

	// Clarification and non-business turns end here: no embedding, no
	// search, no completion.
	if route.NeedsClarification {
		return &TurnResult{
			Answer:      route.ClarifyingQuestion,
			Reason:      "needs_clarification",
			RoutingMeta: routingMeta,
		}, nil
	}
	if !route.IsBusiness {
		return &TurnResult{
			Answer:      msgNotBusiness,
			Reason:      "not_business",
			RoutingMeta: routingMeta,
		}, nil
	}

	query, err := s.embedder.Embed(ctx, userMessage)
	if err != nil {
		return nil, err
	}

	results, retrievalMeta, err := s.searchWithFallback(ctx, query, route)
	if err != nil {
		return nil, err
	}

	topScore, hasTop := retrievalMeta["top_score"].(float64)
	if !hasTop || len(results) == 0 || topScore < s.opts.ScoreThreshold {
		return &TurnResult{
			Answer:        msgSearchWeak,
			Reason:        "search_weak",
			RoutingMeta:   routingMeta,
			RetrievalMeta: retrievalMeta,
		}, nil
	}

	contextTexts := make([]string, 0, len(results))
	usedDocs := make(map[string]struct{})
	var usedDocIDs []string
	for _, r := range results {
		contextTexts = append(contextTexts, r.Chunk.Content)
		if _, ok := usedDocs[r.Chunk.DocumentID]; !ok {
			usedDocs[r.Chunk.DocumentID] = struct{}{}
			usedDocIDs = append(usedDocIDs, r.Chunk.DocumentID)
		}
	}
	contextBlock := strings.Join(contextTexts, "\n\n")

	prompt := buildPrompt(
		selectSystemPrompt(route.PrimaryDepartment),
		history,
		contextBlock,
		userMessage,
	)

	answer, err := s.client.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Answer:           answer,
		RoutingMeta:      routingMeta,
		RetrievalMeta:    retrievalMeta,
		UsedDocumentIDs:  usedDocIDs,
		NumContextChunks: len(results),
		Citations:        buildCitations(results),
	}, nil
}

// buildSessionContext walks history newest to oldest, prepending trimmed
// "role: content" lines until the character budget is reached.
func (s *RAGService) buildSessionContext(history []*model.ChatMessage) string {
	var sb strings.Builder
	var lines []string
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		content := m.Content
		if runeLen(content) > s.opts.PerMessageSnippet {
			content = string([]rune(content)[:s.opts.PerMessageSnippet])
		}
		line := fmt.Sprintf("%s: %s\n", m.Role, content)
		if total+runeLen(line) > s.opts.ContextCharBudget {
			break
		}
		total += runeLen(line)
		lines = append(lines, line)
	}
	// Collected newest-first; emit oldest-first.
	for i := len(lines) - 1; i >= 0; i-- {
		sb.WriteString(lines[i])
	}
	return sb.String()
}

// searchWithFallback searches the routed scopes in order, then falls back
// company-wide when no scope clears the threshold. A scope with zero hits
// is weak and falls through to the next.
func (s *RAGService) searchWithFallback(ctx context.Context, query []float32, route *RoutingDecision) ([]model.SearchResult, map[string]any, error) {
	var scopes []string
	if route.PrimaryDepartment != "" && route.PrimaryDepartment != "unknown" {
		scopes = append(scopes, route.PrimaryDepartment)
	}
	for _, d := range route.SecondaryDepartments {
		if d != "" && d != "unknown" && !containsString(scopes, d) {
			scopes = append(scopes, d)
		}
	}

	for _, scope := range scopes {
		results, err := s.search.Search(ctx, query, s.opts.TopK, model.SearchFilters{DepartmentCode: scope})
		if err != nil {
			return nil, nil, err
		}
		if len(results) > 0 && results[0].Score >= s.opts.ScoreThreshold {
			return results, map[string]any{
				"engine":             "vector",
				"scope_used":         scope,
				"fallback_triggered": false,
				"top_score":          results[0].Score,
				"hit_count":          len(results),
				"k":                  s.opts.TopK,
				"score_threshold":    s.opts.ScoreThreshold,
			}, nil
		}
	}

	results, err := s.search.Search(ctx, query, s.opts.TopK, model.SearchFilters{})
	if err != nil {
		return nil, nil, err
	}
	meta := map[string]any{
		"engine":             "vector",
		"scope_used":         "company",
		"fallback_triggered": true,
		"hit_count":          len(results),
		"k":                  s.opts.TopK,
		"score_threshold":    s.opts.ScoreThreshold,
	}
	if len(results) > 0 {
		meta["top_score"] = results[0].Score
	}
	return results, meta, nil
}

// selectSystemPrompt picks the persona for the routed department; unknown
// codes get the general desk.
func selectSystemPrompt(deptCode string) string {
	base := "あなたは社内問合せ専用のアシスタントです。" +
		"以下の社内資料（検索で取得したコンテキスト）を根拠に、日本語で簡潔かつ丁寧に回答してください。" +
		"根拠が不足している場合は推測で断定せず、「" + insufficientContextPhrase + "」と答えてください。"

	roles := map[string]string{
		"hr":      "あなたは人事総務の担当者です。",
		"finance": "あなたは経理の担当者です。",
		"legal":   "あなたは法務の担当者です。",
		"it":      "あなたは情シスの担当者です。",
	}
	role, ok := roles[deptCode]
	if !ok {
		role = "あなたは総合窓口の担当者です。"
	}
	return base + "\n" + role
}

// buildPrompt assembles the five labelled blocks. The question block ends
// the prompt.
func buildPrompt(systemPrompt string, history []*model.ChatMessage, contextBlock, userMessage string) string {
	var historyLines []string
	for _, m := range history {
		role := "Assistant"
		if m.Role == model.ChatRoleUser {
			role = "User"
		}
		historyLines = append(historyLines, fmt.Sprintf("%s: %s", role, m.Content))
	}
	last := len(history) - 1
	if last < 0 || history[last].Role != model.ChatRoleUser || history[last].Content != userMessage {
		historyLines = append(historyLines, "User: "+userMessage)
	}

	return fmt.Sprintf(`[system]
%s

[Conversation history]
%s

[Retrieved context]
%s

[Instruction]
- 必ず「Question」に対しての回答をしてください。
- 根拠は「Retrieved context」と「Conversation history」のみです。
- 根拠が不足して断定できない場合は「%s」と答えてください。
- 推測で事実を作らないでください。

[Question]
%s`,
		systemPrompt,
		strings.Join(historyLines, "\n"),
		contextBlock,
		insufficientContextPhrase,
		userMessage)
}

// buildCitations aggregates hits per document. Documents with any paged hit
// cite pages; the rest cite 1-based chunk indices. Sorted by title, then
// document id.
func buildCitations(results []model.SearchResult) []model.Citation {
	type acc struct {
		title   string
		hasPage bool
		pages   map[int]struct{}
		chunks  map[int]struct{}
	}
	byDoc := make(map[string]*acc)

	for _, r := range results {
		chunk := r.Chunk
		if chunk == nil || chunk.DocumentID == "" {
			continue
		}
		a, ok := byDoc[chunk.DocumentID]
		if !ok {
			title := ""
			if chunk.Document != nil {
				title = chunk.Document.Title
			}
			if title == "" {
				title = "Document#" + chunk.DocumentID
			}
			a = &acc{
				title:  title,
				pages:  make(map[int]struct{}),
				chunks: make(map[int]struct{}),
			}
			byDoc[chunk.DocumentID] = a
		}
		if chunk.Page != nil {
			a.hasPage = true
			a.pages[*chunk.Page] = struct{}{}
		} else {
			a.chunks[chunk.ChunkIndex+1] = struct{}{}
		}
	}

	citations := make([]model.Citation, 0, len(byDoc))
	for docID, a := range byDoc {
		var locator model.Locator
		if a.hasPage && len(a.pages) > 0 {
			locator = model.Locator{Type: "page_set", Pages: sortedInts(a.pages)}
		} else {
			locator = model.Locator{Type: "chunk_set", Chunks: sortedInts(a.chunks)}
		}
		citations = append(citations, model.Citation{
			DocumentID: docID,
			Title:      a.title,
			Locator:    locator,
		})
	}

	sort.Slice(citations, func(i, j int) bool {
		if citations[i].Title != citations[j].Title {
			return citations[i].Title < citations[j].Title
		}
		return citations[i].DocumentID < citations[j].DocumentID
	})
	return citations
}

func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
