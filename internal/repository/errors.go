// Package repository implements MySQL persistence for products and
// reservations, plus an in-memory store used by tests and local
// development.  Sentinel errors defined here let higher layers such as
// handlers distinguish failure scenarios without inspecting raw SQL
// errors.
package repository

import "errors"

// ErrProductNotFound is returned when a lookup by id or slug matches no
// product.  Handlers should translate this into an HTTP 404 response.
var ErrProductNotFound = errors.New("product not found")

// ErrConflict is returned when a status change is not a legal lifecycle
// transition, such as deactivating a product that is currently
// RESERVED or SOLD.  Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")
