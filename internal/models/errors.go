package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNotOwner        = errors.New("item belongs to another user")
	ErrOwnItem         = errors.New("cannot claim your own item")
	ErrClaimExists     = errors.New("claim already exists")
	ErrItemUnavailable = errors.New("item is no longer active")
	ErrIncompleteItem  = errors.New("item report is missing required fields")
	ErrClaimResolved   = errors.New("claim already resolved")
)
