package dto

// Client to server stream message types.
const (
	StreamMessageCarousel   = "carousel"
	StreamMessageImage      = "image"
	StreamMessageVisibility = "visibility"
	StreamMessageSection    = "section"
	StreamMessageError      = "error"
)

// Carousel navigation actions.
const (
	CarouselActionNext   = "next"
	CarouselActionPrev   = "prev"
	CarouselActionSelect = "select"
)

// StreamClientMessage is any message a page sends over the stream.
type StreamClientMessage struct {
	Type     string `json:"type"`
	Carousel string `json:"carousel,omitempty"`
	Action   string `json:"action,omitempty"`
	Index    int    `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Src      string `json:"src,omitempty"`
	Priority bool   `json:"priority,omitempty"`
	Distance int    `json:"distance,omitempty"`
}

// StreamSectionMessage carries a section update.
type StreamSectionMessage struct {
	Type    string      `json:"type"`
	Section string      `json:"section"`
	Data    interface{} `json:"data"`
	Meta    SectionMeta `json:"meta"`
}

// StreamCarouselMessage reports the displayed slide of a carousel.
type StreamCarouselMessage struct {
	Type     string `json:"type"`
	Carousel string `json:"carousel"`
	Index    int    `json:"index"`
	Count    int    `json:"count"`
}

// StreamImageMessage reports a lazy image outcome. Src is the placeholder when unavailable.
type StreamImageMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Status string `json:"status"`
	Src    string `json:"src"`
}

// StreamErrorMessage reports a rejected client message.
type StreamErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
