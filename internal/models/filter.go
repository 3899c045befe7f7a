package models

import (
	"path/filepath"
	"strings"
)

// Where is an exact-match filter a vector store evaluates natively.
// Empty fields are unconstrained.
type Where struct {
	Source string
	Type   string
	DocID  string
}

func (w Where) IsZero() bool {
	return w == Where{}
}

// Match reports whether m satisfies every set field of w.
func (w Where) Match(m Metadata) bool {
	if w.Source != "" && m.Source != w.Source {
		return false
	}
	if w.Type != "" && m.Type != w.Type {
		return false
	}
	if w.DocID != "" && m.DocID != w.DocID {
		return false
	}
	return true
}

var (
	ImageExts = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}
	AudioExts = []string{".mp3", ".wav", ".m4a"}
	VideoExts = []string{".mp4", ".mov", ".mkv"}
)

// Scope restricts a query to a modality, a source or a specific file/url.
type Scope struct {
	Source       string `json:"source,omitempty"`
	Type         string `json:"type,omitempty"`
	PathContains string `json:"path_contains,omitempty"`
	URLContains  string `json:"url_contains,omitempty"`
}

func (s Scope) IsZero() bool {
	return s == Scope{}
}

// Pushdown returns the part of the scope a store can filter on natively.
func (s Scope) Pushdown() Where {
	return Where{Source: s.Source, Type: s.Type}
}

// Keep is the residual client-side predicate. It re-checks the pushed down
// fields so it can be applied to hits from any store.
func (s Scope) Keep(m Metadata) bool {
	if s.Source != "" && m.Source != s.Source {
		return false
	}
	switch s.Type {
	case "":
	case TypeImage, TypeAudio, TypeVideo:
		if !HasType(m, s.Type) {
			return false
		}
	default:
		if !strings.EqualFold(m.Type, s.Type) {
			return false
		}
	}
	if s.PathContains != "" && !containsFold(m.Path, s.PathContains) {
		return false
	}
	if s.URLContains != "" && !containsFold(m.URL, s.URLContains) {
		return false
	}
	return true
}

// HasType reports whether m is of modality t, inferring it from the path
// suffix when the explicit type does not say so.
func HasType(m Metadata, t string) bool {
	if strings.EqualFold(m.Type, t) {
		return true
	}
	var exts []string
	switch t {
	case TypeImage:
		exts = ImageExts
	case TypeAudio:
		exts = AudioExts
	case TypeVideo:
		exts = VideoExts
	default:
		return false
	}
	ext := strings.ToLower(filepath.Ext(m.Path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
