package models

import "fmt"

const (
	SourceFile    = "file"
	SourceYouTube = "youtube"

	TypeText  = "text"
	TypeImage = "image"
	TypeAudio = "audio"
	TypeVideo = "video"
)

// Metadata is attached to every chunk of a document. The chunk index is
// filled in by the indexer.
type Metadata struct {
	DocID  string `json:"doc_id,omitempty"`
	Source string `json:"source,omitempty"`
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
	Name   string `json:"name,omitempty"`
	Ext    string `json:"ext,omitempty"`
	Type   string `json:"type,omitempty"`
	Chunk  int    `json:"chunk"`
}

type Document struct {
	ID       string
	Text     string
	Metadata Metadata
}

type Chunk struct {
	ID        string
	Index     int
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// StoredChunk is what a store returns when listing chunks without content.
type StoredChunk struct {
	ID       string
	Metadata Metadata
}

type SearchHit struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// ChunkID builds the store key of chunk i of a document.
func ChunkID(docID string, i int) string {
	return fmt.Sprintf("%s-%d", docID, i)
}

type IndexStats struct {
	Chunks int `json:"chunks"`
	Added  int `json:"added"`
}

type Answer struct {
	Answer   string      `json:"answer"`
	Contexts []SearchHit `json:"contexts"`
}
