// Package model defines the persistent entities of the answer service and
// the store interfaces the services depend on. Storage adapters live in
// internal/store; nothing here imports a database driver.
package model

import (
	"context"
	"time"
)

// AuditAction identifies a mutating operation recorded in the audit log.
type AuditAction string

const (
	AuditActionUpload     AuditAction = "UPLOAD"
	AuditActionDelete     AuditAction = "DELETE"
	AuditActionReindex    AuditAction = "REINDEX"
	AuditActionReindexAll AuditAction = "REINDEX_ALL"
)

// AuditStatus is the terminal outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "SUCCESS"
	AuditStatusFailed  AuditStatus = "FAILED"
)

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// Department is a retrieval scope. Code is the business key: non-empty,
// lowercase alphanumerics plus underscore, unique.
type Department struct {
	ID   string
	Code string
	Name string
}

// Document is an uploaded source file. DepartmentID is immutable after
// creation; deleting a Document cascades to its Chunks.
type Document struct {
	ID           string
	Title        string
	FilePath     string // opaque to the core, resolved by BlobStore
	NumPages     *int
	DepartmentID string
	UploadedByID string
	CreatedAt    time.Time
}

// Chunk is the unit of retrieval: a contiguous text span with its embedding.
// ChunkIndex values are dense and 0-based per document. Page, when present,
// is 1-based. The embedding is L2-normalised and its dimension equals the
// process-wide dimension discovered at startup.
type Chunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Page       *int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChunkRef is a chunk resolved together with its owning document, as
// returned by search.
type ChunkRef struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Page       *int
	Content    string
	Document   *Document
}

// SearchResult pairs a resolved chunk with its similarity score. Scores are
// inner products of L2-normalised vectors, in [-1, 1].
type SearchResult struct {
	Chunk *ChunkRef
	Score float64
}

// SearchFilters constrains a vector search to one department. Either field
// may be empty; both empty means company-wide.
type SearchFilters struct {
	DepartmentID   string
	DepartmentCode string
}

// AuditLog is an append-only record of a mutating operation. Meta is a
// free-form structured map serialised as JSON.
type AuditLog struct {
	ID           string
	Action       AuditAction
	Status       AuditStatus
	ActorID      string
	DocumentID   string
	DepartmentID string
	Message      string
	Meta         map[string]any
	CreatedAt    time.Time
}

// ChatSession groups the turns of one conversation. A session is open while
// EndedAt is nil; each owner has at most one open session.
type ChatSession struct {
	ID                 string
	UserID             string // empty for anonymous holders
	AnswerDepartmentID string
	Title              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	EndedAt            *time.Time
}

// ChatMessage is one turn in a session. RoutingMeta is attached to the user
// turn; RetrievalMeta and Citations to the assistant turn.
type ChatMessage struct {
	ID            string
	SessionID     string
	Role          ChatRole
	Content       string
	RoutingMeta   map[string]any
	RetrievalMeta map[string]any
	Citations     []Citation
	CreatedAt     time.Time
}

// Citation locates the pages or chunks of one document that grounded an
// answer.
type Citation struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Locator    Locator `json:"locator"`
}

// Locator is either a page set (type "page_set") or a chunk set
// (type "chunk_set", 1-based display indices).
type Locator struct {
	Type   string `json:"type"`
	Pages  []int  `json:"pages,omitempty"`
	Chunks []int  `json:"chunks,omitempty"`
}

// DepartmentCatalog lists and resolves departments.
type DepartmentCatalog interface {
	ListCodes(ctx context.Context) ([]string, error)
	GetByCode(ctx context.Context, code string) (*Department, error)
	GetByID(ctx context.Context, id string) (*Department, error)
	Create(ctx context.Context, d *Department) error
}

// DocumentStore persists documents.
type DocumentStore interface {
	Create(ctx context.Context, d *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	ListAll(ctx context.Context) ([]*Document, error)
	UpdateNumPages(ctx context.Context, id string, numPages int) error
	// Delete removes the document; chunks cascade.
	Delete(ctx context.Context, id string) error
}

// ChunkStore persists chunks. GetRefs eager-loads owning documents.
type ChunkStore interface {
	CreateBatch(ctx context.Context, chunks []*Chunk) error
	Get(ctx context.Context, id string) (*Chunk, error)
	GetRefs(ctx context.Context, ids []string) ([]*ChunkRef, error)
	ListIDsByDocument(ctx context.Context, documentID string) ([]string, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	// ListAllOrdered iterates every chunk ordered by id, in batches of
	// batchSize, invoking fn per batch. Used by index rebuild.
	ListAllOrdered(ctx context.Context, batchSize int, fn func(batch []*Chunk) error) error
	Count(ctx context.Context) (int, error)
}

// AuditStore appends audit rows. Append-only: no update, no delete.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditLog) error
	ListRecent(ctx context.Context, limit int) ([]*AuditLog, error)
}

// ChatStore persists sessions and messages.
type ChatStore interface {
	CreateSession(ctx context.Context, s *ChatSession) error
	GetOpenSession(ctx context.Context, userID string) (*ChatSession, error)
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
	UpdateSessionDepartment(ctx context.Context, sessionID, departmentID string) error
	AppendMessage(ctx context.Context, m *ChatMessage) error
	// RecentMessages returns the most recent limit user/assistant messages
	// of the session in chronological order.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error)
}

// BlobStore abstracts file storage. The core depends only on these four
// methods.
type BlobStore interface {
	Save(relativePath string, data []byte) (storedPath string, err error)
	Delete(storedPath string) error
	ReadBytes(storedPath string) ([]byte, error)
	ResolveFsPath(storedPath string) (string, error)
}

// Transactor runs fn inside one storage transaction. Services use it to make
// multi-row mutations all-or-nothing.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
