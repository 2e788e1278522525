package sqlutil

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Helper functions for converting between Go types and pgtype values

// ToText maps the empty string to SQL NULL
func ToText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// FromText maps SQL NULL to the empty string
func FromText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
