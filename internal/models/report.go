package models

type FileResult struct {
	Path        string `json:"path"`
	Chars       int    `json:"chars"`
	AddedChunks *int   `json:"added_chunks,omitempty"`
	Skipped     string `json:"skipped,omitempty"`
}

type DirResult struct {
	Path          string       `json:"path"`
	FilesScanned  int          `json:"files_scanned"`
	FilesIngested int          `json:"files_ingested"`
	TotalChars    int          `json:"total_chars"`
	SkippedCount  int          `json:"skipped_count"`
	Results       []FileResult `json:"results"`
}

type YouTubeResult struct {
	YouTube     string `json:"youtube"`
	Chars       int    `json:"chars"`
	AddedChunks *int   `json:"added_chunks,omitempty"`
	Skipped     string `json:"skipped,omitempty"`
}
