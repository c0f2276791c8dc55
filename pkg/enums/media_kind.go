package enums

// MediaKind classifies listing attachments.
type MediaKind string

const (
	MediaKindImage    MediaKind = "IMAGE"
	MediaKindVideo    MediaKind = "VIDEO"
	MediaKindDocument MediaKind = "DOCUMENT"
)

// IsVisual reports whether the media counts towards hasMedia.
func (k MediaKind) IsVisual() bool {
	return k == MediaKindImage || k == MediaKindVideo
}
