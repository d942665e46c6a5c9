package store

import "time"

type Profile struct {
	ID                    string
	Email                 string
	DisplayName           string
	PasswordHash          string
	Role                  string
	Language              string
	IsBlocked             bool
	FrozenUntil           *time.Time
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	LastCommentAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Chapter struct {
	ID         string
	Title      string
	Summary    string
	OrderIndex int
	IsDraft    bool
	IsHidden   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Page struct {
	ID         string
	ChapterID  string
	Title      string
	Body       string
	OrderIndex int
	IsDraft    bool
	IsHidden   bool
	UpdatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ParagraphType tags the variant a paragraph row holds; the optional
// columns are meaningful only for the matching type.
type ParagraphType string

const (
	ParagraphText     ParagraphType = "text"
	ParagraphImage    ParagraphType = "image"
	ParagraphList     ParagraphType = "list"
	ParagraphQuote    ParagraphType = "quote"
	ParagraphPageLink ParagraphType = "page_link"
)

type Paragraph struct {
	ID           string
	PageID       string
	Type         ParagraphType
	Content      string
	Caption      string
	MediaURL     string
	LinkedPageID *string
	OrderIndex   int
	IsHidden     bool
	UpdatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Translation struct {
	ID       string
	EntityID string
	Language string
	Title    string
	Body     string
}

// TOCPage and TOCChapter carry the localized table of contents. Draft and
// hidden flags are included so editors can see unpublished entries.
type TOCPage struct {
	ID         string
	Title      string
	OrderIndex int
	IsDraft    bool
	IsHidden   bool
}

type TOCChapter struct {
	ID         string
	Title      string
	Summary    string
	OrderIndex int
	IsDraft    bool
	IsHidden   bool
	Pages      []TOCPage
}

type PageVersion struct {
	ID        int64
	PageID    string
	Version   int
	Title     string
	Body      string
	EditedBy  string
	CreatedAt time.Time
}

type ParagraphVersion struct {
	ID          int64
	ParagraphID string
	Version     int
	Content     string
	Caption     string
	EditedBy    string
	CreatedAt   time.Time
}

const (
	SuggestionPending  = "pending"
	SuggestionApproved = "approved"
	SuggestionRejected = "rejected"
)

type Suggestion struct {
	ID               string
	ParagraphID      string
	AuthorID         string
	AuthorName       string
	ProposedContent  string
	Rationale        string
	Status           string
	IsDeleted        bool
	BaseVersion      int
	CreatedIP        string
	CreatedUserAgent string
	ApprovedBy       string
	ApprovedAt       *time.Time
	RejectedBy       string
	RejectedAt       *time.Time
	VoteTotal        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Comment struct {
	ID           string
	PageID       *string
	ParagraphID  *string
	SuggestionID *string
	ParentID     *string
	AuthorID     string
	AuthorName   string
	Body         string
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CommentNode is a comment with its replies grouped beneath it and its
// aggregated vote total.
type CommentNode struct {
	Comment
	VoteTotal int
	Replies   []CommentNode
}

type Notification struct {
	ID           int64
	ProfileID    string
	Kind         string
	PageID       *string
	CommentID    *string
	SuggestionID *string
	ActorName    string
	Message      string
	IsRead       bool
	CreatedAt    time.Time
}

type EmailLogEntry struct {
	ID        int64
	Recipient string
	Subject   string
	Kind      string
	Status    string
	Error     string
	CreatedAt time.Time
}
