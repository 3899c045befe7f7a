package retriever

import (
	"fmt"
	"strings"

	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/internal/types"
)

// Only values accepted by ScopeFromOnly.
const (
	OnlyAll     = "all"
	OnlyAudio   = "audio"
	OnlyVideo   = "video"
	OnlyImages  = "images"
	OnlyYouTube = "youtube"
)

// ScopeFromOnly maps the --only, --file and --url_contains options to a
// query scope.
func ScopeFromOnly(only, file, urlContains string) (models.Scope, error) {
	var scope models.Scope
	switch strings.ToLower(strings.TrimSpace(only)) {
	case "", OnlyAll:
	case OnlyYouTube:
		scope.Source = models.SourceYouTube
	case OnlyImages:
		scope.Type = models.TypeImage
	case OnlyAudio:
		scope.Type = models.TypeAudio
	case OnlyVideo:
		scope.Type = models.TypeVideo
	default:
		return scope, fmt.Errorf("%w: --only must be one of all, audio, video, images, youtube; got %q",
			types.ErrInvalidConfig, only)
	}
	scope.PathContains = file
	scope.URLContains = urlContains
	return scope, nil
}
