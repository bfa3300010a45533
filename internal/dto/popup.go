package dto

import "github.com/noah-isme/prepdeck-marketing-api/internal/models"

// PopupResponse answers whether the popup should be displayed today.
type PopupResponse struct {
	Show   bool                `json:"show"`
	Banner *models.PopupBanner `json:"banner,omitempty"`
}
