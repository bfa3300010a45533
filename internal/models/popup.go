package models

// PopupBanner is the singleton promotional overlay stored at config/popupBanner.
type PopupBanner struct {
	ImageURL    string `firestore:"imageUrl" json:"image_url,omitempty"`
	ImageBase64 string `firestore:"imageBase64" json:"image_base64,omitempty"`
	Link        string `firestore:"link" json:"link,omitempty"`
	Active      *bool  `firestore:"active" json:"active,omitempty"`
}

// Displayable reports whether the popup is enabled and has something to show.
func (p PopupBanner) Displayable() bool {
	if p.Active != nil && !*p.Active {
		return false
	}
	return p.ImageURL != "" || p.ImageBase64 != ""
}

func (p PopupBanner) Image() string {
	return imageSource(p.ImageURL, p.ImageBase64)
}
