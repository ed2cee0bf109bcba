// Package chat implements the question-answering flow: routing
// classification, scoped retrieval with company-wide fallback, prompt
// assembly, and session bookkeeping.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kishika1sei/askdesk/internal/llm"
)

// RoutingDecision is the structured result of one routing call: business
// judgement, department assignment, and the clarification gate.
type RoutingDecision struct {
	IsBusiness           bool     `json:"is_business"`
	BusinessConfidence   float64  `json:"business_confidence"`
	PrimaryDepartment    string   `json:"primary_department"`
	DepartmentConfidence float64  `json:"department_confidence"`
	SecondaryDepartments []string `json:"secondary_departments"`
	NeedsClarification   bool     `json:"needs_clarification"`
	ClarifyingQuestion   string   `json:"clarifying_question"`
}

// Meta returns the decision as a map for message metadata.
func (d *RoutingDecision) Meta() map[string]any {
	secondaries := d.SecondaryDepartments
	if secondaries == nil {
		secondaries = []string{}
	}
	return map[string]any{
		"is_business":           d.IsBusiness,
		"business_confidence":   d.BusinessConfidence,
		"primary_department":    d.PrimaryDepartment,
		"department_confidence": d.DepartmentConfidence,
		"secondary_departments": secondaries,
		"needs_clarification":   d.NeedsClarification,
		"clarifying_question":   d.ClarifyingQuestion,
	}
}

// routingSchema constrains the routing output. All fields are required;
// confidences are bounded to [0, 1].
var routingSchema = llm.JSONSchema{
	Name: "routing_decision",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"is_business": {"type": "boolean"},
			"business_confidence": {"type": "number", "minimum": 0, "maximum": 1},
			"primary_department": {"type": "string"},
			"department_confidence": {"type": "number", "minimum": 0, "maximum": 1},
			"secondary_departments": {"type": "array", "items": {"type": "string"}},
			"needs_clarification": {"type": "boolean"},
			"clarifying_question": {"type": "string"}
		},
		"required": ["is_business", "business_confidence", "primary_department", "department_confidence", "secondary_departments", "needs_clarification", "clarifying_question"],
		"additionalProperties": false
	}`),
}

// Clarification messages used by the safe defaults.
const (
	clarifyParseFailure = "どの手続き・制度・トピックに関する問い合わせか、具体名を1つ教えてください。"
	clarifyAPIFailure   = "通信/内部エラーが発生しました。もう一度お試しください。"
)

// RoutingService classifies one user turn in a single structured LLM call.
// It never returns an error: any failure degrades to a safe default that
// treats the turn as business and asks for clarification.
type RoutingService struct {
	client llm.Client
	logger *slog.Logger
}

// NewRoutingService creates the routing service.
func NewRoutingService(client llm.Client, logger *slog.Logger) *RoutingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutingService{client: client, logger: logger}
}

// Route classifies userText against the known department codes.
// sessionContext, when non-empty, is supplied as auxiliary context.
func (s *RoutingService) Route(ctx context.Context, userText string, departmentCodes []string, sessionContext string) *RoutingDecision {
	codes := normalizeCodes(departmentCodes)

	deptHint := "(none)"
	if len(codes) > 0 {
		deptHint = strings.Join(codes, ", ")
	}

	instructions := "あなたは社内問い合わせ回答アシスタントのルーティング担当です。\n" +
		"次のJSONスキーマに厳密に従って出力してください。\n" +
		"判定の方針:\n" +
		"- 業務かどうか曖昧なら is_business は true 寄りにする\n" +
		"- ただし曖昧で誤回答リスクが高い場合は needs_clarification=true にし、clarifying_question を1つだけ作る\n" +
		"- primary_department は必ず部門コードで返す（不明なら unknown）\n" +
		"- secondary_departments は最大2つ程度まで（不要なら空配列）\n" +
		"\n" +
		fmt.Sprintf("利用可能な部門コード一覧: %s\n", deptHint)

	userPayload := fmt.Sprintf("ユーザの質問:\n%s\n", userText)
	if sessionContext != "" {
		userPayload += fmt.Sprintf("\n直近文脈(要約):\n%s\n", sessionContext)
	}

	raw, err := s.client.CompleteStructured(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: instructions},
		{Role: llm.RoleUser, Content: userPayload},
	}, routingSchema)
	if err != nil {
		s.logger.Warn("routing_call_failed", slog.String("error", err.Error()))
		return safeDefault(clarifyAPIFailure)
	}

	var decision RoutingDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		s.logger.Warn("routing_parse_failed", slog.String("error", err.Error()))
		return safeDefault(clarifyParseFailure)
	}
	if err := validateDecision(&decision); err != nil {
		s.logger.Warn("routing_validation_failed", slog.String("error", err.Error()))
		return safeDefault(clarifyParseFailure)
	}

	return postValidate(&decision, codes)
}

func safeDefault(question string) *RoutingDecision {
	return &RoutingDecision{
		IsBusiness:           true,
		BusinessConfidence:   0.0,
		PrimaryDepartment:    "unknown",
		DepartmentConfidence: 0.0,
		SecondaryDepartments: []string{},
		NeedsClarification:   true,
		ClarifyingQuestion:   question,
	}
}

// validateDecision enforces the schema invariants the transport cannot:
// clarification implies a question, primary is never blank, confidences are
// bounded.
func validateDecision(d *RoutingDecision) error {
	if d.NeedsClarification && strings.TrimSpace(d.ClarifyingQuestion) == "" {
		return fmt.Errorf("needs_clarification without clarifying_question")
	}
	if strings.TrimSpace(d.PrimaryDepartment) == "" {
		return fmt.Errorf("primary_department is empty")
	}
	if d.BusinessConfidence < 0 || d.BusinessConfidence > 1 ||
		d.DepartmentConfidence < 0 || d.DepartmentConfidence > 1 {
		return fmt.Errorf("confidence out of range")
	}

	// De-duplicate secondaries and drop the primary.
	var sec []string
	for _, code := range d.SecondaryDepartments {
		if code == "" || code == d.PrimaryDepartment {
			continue
		}
		if !containsString(sec, code) {
			sec = append(sec, code)
		}
	}
	d.SecondaryDepartments = sec
	return nil
}

// postValidate applies the business-side checks: a primary code the catalog
// does not know falls back to a clarification listing the legal codes;
// secondaries are filtered to known codes and truncated to 2.
func postValidate(d *RoutingDecision, codes []string) *RoutingDecision {
	if d.PrimaryDepartment != "unknown" && len(codes) > 0 && !containsString(codes, d.PrimaryDepartment) {
		d.NeedsClarification = true
		d.ClarifyingQuestion = "どの部門の内容に近いですか？次から選んでください: " + strings.Join(codes, ", ")
		d.PrimaryDepartment = "unknown"
		d.DepartmentConfidence = 0.0
		d.SecondaryDepartments = []string{}
	}

	if len(codes) > 0 {
		var sec []string
		for _, code := range d.SecondaryDepartments {
			if containsString(codes, code) && code != d.PrimaryDepartment {
				sec = append(sec, code)
			}
		}
		if len(sec) > 2 {
			sec = sec[:2]
		}
		d.SecondaryDepartments = sec
	}
	return d
}

func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	var out []string
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
