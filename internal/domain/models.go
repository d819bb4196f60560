package domain

import (
	"strings"
	"time"
)

// Source types a note can originate from.
const (
	SourceText    = "text"
	SourceAudio   = "audio"
	SourceVideo   = "video"
	SourcePDF     = "pdf"
	SourceYouTube = "youtube"
)

// AnonymousUser is the sentinel user id for notes saved without a session.
const AnonymousUser = "anonymous"

type QAPair struct {
	Question string `json:"question" bson:"question"`
	Answer   string `json:"answer" bson:"answer"`
}

// SummaryFormats holds the three persisted summary shapes. Revision Q&A is
// generated by the pipeline but deliberately kept out of this structure.
type SummaryFormats struct {
	BulletNotes  []string `json:"bulletNotes" bson:"bulletNotes"`
	TopicWise    []string `json:"topicWise" bson:"topicWise"`
	KeyTakeaways []string `json:"keyTakeaways" bson:"keyTakeaways"`
}

// IsEmpty reports whether no summary shape carries content.
func (s SummaryFormats) IsEmpty() bool {
	return len(s.BulletNotes) == 0 && len(s.TopicWise) == 0 && len(s.KeyTakeaways) == 0
}

// Note is the persisted study note. SearchableText is derived from title and
// transcript on every save; it is never edited independently.
type Note struct {
	ID             string         `json:"id" bson:"id"`
	StoreID        string         `json:"_id,omitempty" bson:"-"`
	Title          string         `json:"title" bson:"title"`
	SourceType     string         `json:"sourceType" bson:"sourceType"`
	Transcript     string         `json:"transcript" bson:"transcript"`
	SummaryFormats SummaryFormats `json:"summaryFormats" bson:"summaryFormats"`
	RevisionQA     []QAPair       `json:"revisionQA" bson:"revisionQA"`
	VideoID        string         `json:"videoId,omitempty" bson:"videoId,omitempty"`
	YouTubeURL     string         `json:"youtubeUrl,omitempty" bson:"youtubeUrl,omitempty"`
	UserID         string         `json:"userId" bson:"userId"`
	SearchableText string         `json:"searchableText" bson:"searchableText"`
	CreatedAt      time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// ComputeSearchableText derives the lower-cased search field from the note's
// title and transcript.
func (n Note) ComputeSearchableText() string {
	return strings.ToLower(n.Title + " " + n.Transcript)
}
