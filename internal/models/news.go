package models

import (
	"strings"
	"time"
)

// NewsItem is a post from the posts collection flagged as news.
type NewsItem struct {
	ID         string    `firestore:"-" json:"id"`
	Text       string    `firestore:"text" json:"text"`
	FullText   string    `firestore:"fullText" json:"full_text,omitempty"`
	AuthorName string    `firestore:"authorName" json:"author_name,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt" json:"created_at"`
	IsNews     bool      `firestore:"isNews" json:"is_news"`
}

// Matches reports whether search occurs in the text, full text or author, ignoring case.
// An empty search matches everything.
func (n NewsItem) Matches(search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, field := range []string{n.Text, n.FullText, n.AuthorName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
