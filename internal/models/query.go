package models

import "fmt"

// Direction of a server-side sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter is an equality-style constraint on a document field.
type Filter struct {
	Field string
	Op    string
	Value any
}

type Order struct {
	Field     string
	Direction Direction
}

// Query describes a live query against the document store. DocumentPath, when set,
// addresses a single document ("collection/id") and the remaining fields are ignored.
type Query struct {
	Collection   string
	DocumentPath string
	Filters      []Filter
	OrderBy      *Order
	Limit        int
}

// Unsorted returns a copy of q without the server-side sort.
func (q Query) Unsorted() Query {
	clone := q
	clone.Filters = append([]Filter(nil), q.Filters...)
	clone.OrderBy = nil
	return clone
}

func (q Query) String() string {
	if q.DocumentPath != "" {
		return q.DocumentPath
	}
	s := q.Collection
	for _, f := range q.Filters {
		s += fmt.Sprintf(" where %s %s %v", f.Field, f.Op, f.Value)
	}
	if q.OrderBy != nil {
		s += fmt.Sprintf(" order by %s %s", q.OrderBy.Field, q.OrderBy.Direction)
	}
	if q.Limit > 0 {
		s += fmt.Sprintf(" limit %d", q.Limit)
	}
	return s
}

// Document is one record delivered by a snapshot. Fields holds the raw field map
// used for client-side sorting; DataTo decodes into a typed entity.
type Document struct {
	ID     string
	Fields map[string]any
	decode func(any) error
}

// NewDocument binds a decoder to a document.
func NewDocument(id string, fields map[string]any, decode func(any) error) Document {
	return Document{ID: id, Fields: fields, decode: decode}
}

// DataTo decodes the document into dst.
func (d Document) DataTo(dst any) error {
	if d.decode == nil {
		return fmt.Errorf("document %s has no decoder", d.ID)
	}
	return d.decode(dst)
}
