package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPage       ResultType = "page"
	ResultComment    ResultType = "comment"
	ResultSuggestion ResultType = "suggestion"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	PageID    string     `json:"pageId"`
	ChapterID string     `json:"chapterId"`
}

// Query describes a search request.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterChapterID string
	Limit           int
	Offset          int
	IncludeHidden   bool // editors and admins see draft and hidden pages
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexPage(p PageRecord) error
	IndexComment(c CommentRecord) error
	IndexSuggestion(s SuggestionRecord) error
	DeletePage(id string) error
	DeleteComment(id string) error
	DeleteSuggestion(id string) error
}

// PageRecord is the data we index for a page.
type PageRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	ChapterID string `json:"chapterId"`
	IsDraft   bool   `json:"isDraft"`
	IsHidden  bool   `json:"isHidden"`
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID         string `json:"id"`
	Body       string `json:"body"`
	PageID     string `json:"pageId"`
	ChapterID  string `json:"chapterId"`
	AuthorName string `json:"authorName"`
}

// SuggestionRecord is the data we index for an edit suggestion.
type SuggestionRecord struct {
	ID              string `json:"id"`
	ProposedContent string `json:"proposedContent"`
	Rationale       string `json:"rationale"`
	PageID          string `json:"pageId"`
	ChapterID       string `json:"chapterId"`
	Status          string `json:"status"`
	AuthorName      string `json:"authorName"`
}
