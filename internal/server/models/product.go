package models

import (
	"slices"

	"github.com/google/uuid"
)

// ProductFields holds the caller-replaceable columns of a product.
type ProductFields struct {
	Title    string
	Body     string
	Img      string
	Duration int32
	Kind     string
}

// Product is a catalog record. ID is the internal join key, UUID the stable
// external handle. Tags holds the associated tag ids.
type Product struct {
	ID     int64
	UUID   uuid.UUID
	UserID int64
	ProductFields
	Tags []int32
}

// NormalizeTags returns the distinct tag ids in ascending order.
func NormalizeTags(tags []int32) []int32 {
	out := slices.Clone(tags)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []int32{}
	}
	return out
}
