package castprotocol

// MediaItem is the media object of a LOAD request.
type MediaItem struct {
	ContentId   string     `json:"contentId"`
	ContentType string     `json:"contentType"`
	StreamType  string     `json:"streamType"`
	Duration    float32    `json:"duration,omitempty"`
	Metadata    *MediaMeta `json:"metadata,omitempty"`
}

// MediaMeta contains metadata about the media.
// MetadataType 0 is GenericMediaMetadata, 1 is MovieMediaMetadata.
type MediaMeta struct {
	MetadataType int    `json:"metadataType"`
	Title        string `json:"title,omitempty"`
}

func newMediaItem(mediaURL, contentType, title string) MediaItem {
	item := MediaItem{
		ContentId:   mediaURL,
		ContentType: contentType,
		StreamType:  "BUFFERED",
	}

	if title != "" {
		item.Metadata = &MediaMeta{MetadataType: 1, Title: title}
	}

	return item
}
