package models

import (
	"errors"

	"github.com/google/uuid"
)

type ItemKind string

const (
	ItemKindCourse   ItemKind = "course"
	ItemKindEbook    ItemKind = "ebook"
	ItemKindDocument ItemKind = "document"
)

var (
	ErrNoItemReference       = errors.New("no purchasable item reference provided")
	ErrMultipleItemReference = errors.New("more than one purchasable item reference provided")
)

// ItemRef is the discriminated union over the three purchasable kinds.
// A request carries three optional ids; NewItemRef collapses them into a
// single (kind, id) pair or rejects the request.
type ItemRef struct {
	Kind ItemKind
	ID   uuid.UUID
}

func NewItemRef(courseID, ebookID, documentID *uuid.UUID) (ItemRef, error) {
	var ref ItemRef
	count := 0
	if courseID != nil {
		ref = ItemRef{Kind: ItemKindCourse, ID: *courseID}
		count++
	}
	if ebookID != nil {
		ref = ItemRef{Kind: ItemKindEbook, ID: *ebookID}
		count++
	}
	if documentID != nil {
		ref = ItemRef{Kind: ItemKindDocument, ID: *documentID}
		count++
	}
	switch count {
	case 0:
		return ItemRef{}, ErrNoItemReference
	case 1:
		return ref, nil
	default:
		return ItemRef{}, ErrMultipleItemReference
	}
}

// ItemSnapshot is the catalog view of an item at checkout time.
type ItemSnapshot struct {
	Ref         ItemRef
	Title       string
	Description string
	Price       int // minor currency units
}
