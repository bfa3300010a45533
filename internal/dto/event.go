package dto

// TrackEventRequest records a conversion event such as a CTA click.
type TrackEventRequest struct {
	Name       string            `json:"name" validate:"required,max=64"`
	CTA        string            `json:"cta" validate:"max=128"`
	Page       string            `json:"page" validate:"max=256"`
	Properties map[string]string `json:"properties" validate:"max=20"`
}

// ImageProbeResponse reports the outcome of a lazy image load.
type ImageProbeResponse struct {
	Status   string `json:"status"`
	Src      string `json:"src"`
	Attempts int    `json:"attempts"`
}
