package index

// Posting records one entry's occurrences of a keyword.
type Posting struct {
	EntryID   string
	Seq       int // document-order position of the entry, for tie-breaks
	Frequency int
	Positions []int
}

type PostingList []Posting

// TermEntry pairs a keyword with its full posting list, used for segment
// snapshots.
type TermEntry struct {
	Term     string
	Postings PostingList
}
