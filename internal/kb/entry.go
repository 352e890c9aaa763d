// Package kb defines the knowledge-base domain types: entries extracted from
// Markdown study-note documents.
package kb

// Entry is one question/answer/code unit extracted from a document. Entries
// are created at load time and immutable afterwards.
type Entry struct {
	ID         string   `json:"id"`
	Seq        int      `json:"seq"` // position in document order, used for ranking tie-breaks
	Category   string   `json:"category"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	CodeSample string   `json:"code_sample,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// IndexText returns the text the indexer tokenizes for this entry: question,
// answer, and tags. Code samples are excluded so that syntax noise does not
// pollute the keyword index.
func (e Entry) IndexText() string {
	text := e.Question + " " + e.Answer
	for _, tag := range e.Tags {
		text += " " + tag
	}
	return text
}
