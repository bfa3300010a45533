package service

import (
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
)

// Content sections, also used as cache keys.
const (
	SectionBanners = "banners"
	SectionHero    = "hero"
	SectionNews    = "news"
	SectionReviews = "reviews"
	SectionCourses = "courses"
	SectionPopup   = "popup"
)

// Document store locations.
const (
	CollectionBanners = "homeBanners"
	CollectionHero    = "marketingHero"
	CollectionPosts   = "posts"
	CollectionReviews = "reviews"
	CollectionCourses = "courses"
	PopupDocumentPath = "config/popupBanner"
)

func bannerParams(defaultDuration int) LoaderParams[models.Banner] {
	return LoaderParams[models.Banner]{
		Key: SectionBanners,
		Query: models.Query{
			Collection: CollectionBanners,
			OrderBy:    &models.Order{Field: "order", Direction: models.Asc},
		},
		Decode: func(doc models.Document) (models.Banner, error) {
			b, err := decodeDocument(doc, func(b *models.Banner, id string) { b.ID = id })
			b.Normalize(defaultDuration)
			return b, err
		},
		Filter: models.Banner.IsActive,
	}
}

func heroParams() LoaderParams[models.HeroConfig] {
	return LoaderParams[models.HeroConfig]{
		Key:   SectionHero,
		Query: models.Query{Collection: CollectionHero},
		Decode: func(doc models.Document) (models.HeroConfig, error) {
			h, err := decodeDocument(doc, func(h *models.HeroConfig, id string) { h.ID = id })
			h.Normalize()
			return h, err
		},
		Filter: models.HeroConfig.IsActive,
	}
}

func newsParams() LoaderParams[models.NewsItem] {
	return LoaderParams[models.NewsItem]{
		Key: SectionNews,
		Query: models.Query{
			Collection: CollectionPosts,
			Filters:    []models.Filter{{Field: "isNews", Op: "==", Value: true}},
		},
		Decode: func(doc models.Document) (models.NewsItem, error) {
			return decodeDocument(doc, func(n *models.NewsItem, id string) { n.ID = id })
		},
		Less: func(a, b models.NewsItem) bool { return a.CreatedAt.After(b.CreatedAt) },
	}
}

func reviewParams() LoaderParams[models.Review] {
	return LoaderParams[models.Review]{
		Key:   SectionReviews,
		Query: models.Query{Collection: CollectionReviews},
		Decode: func(doc models.Document) (models.Review, error) {
			r, err := decodeDocument(doc, func(r *models.Review, id string) { r.ID = id })
			r.Normalize()
			return r, err
		},
		Filter: models.Review.IsApproved,
		Less:   func(a, b models.Review) bool { return a.CreatedAt.After(b.CreatedAt) },
	}
}

func courseParams() LoaderParams[models.Course] {
	return LoaderParams[models.Course]{
		Key: SectionCourses,
		Query: models.Query{
			Collection: CollectionCourses,
			Filters:    []models.Filter{{Field: "active", Op: "==", Value: true}},
		},
		Decode: func(doc models.Document) (models.Course, error) {
			return decodeDocument(doc, func(c *models.Course, id string) { c.ID = id })
		},
		Filter: models.Course.IsActive,
		Less:   func(a, b models.Course) bool { return a.Featured && !b.Featured },
	}
}

func popupParams() LoaderParams[models.PopupBanner] {
	return LoaderParams[models.PopupBanner]{
		Key:   SectionPopup,
		Query: models.Query{DocumentPath: PopupDocumentPath},
	}
}
