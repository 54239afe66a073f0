package model

import "time"

// ProductStatus enumerates the lifecycle states of a product.  Every item
// in the shop is a unique physical object, so quantity is always exactly
// one and availability is expressed purely through this status.
type ProductStatus string

const (
    ProductActive   ProductStatus = "ACTIVE"   // listed and claimable
    ProductReserved ProductStatus = "RESERVED" // held by a pending reservation
    ProductSold     ProductStatus = "SOLD"     // payment completed
    ProductInactive ProductStatus = "INACTIVE" // hidden by catalog management
)

// Valid reports whether s is a known product status.
func (s ProductStatus) Valid() bool {
    switch s {
    case ProductActive, ProductReserved, ProductSold, ProductInactive:
        return true
    }
    return false
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.  Claiming moves ACTIVE to RESERVED, completion
// moves RESERVED to SOLD and release moves RESERVED back to ACTIVE.
// Catalog management may toggle ACTIVE and INACTIVE, never RESERVED or
// SOLD rows.
func (s ProductStatus) CanTransitionTo(next ProductStatus) bool {
    switch s {
    case ProductActive:
        return next == ProductReserved || next == ProductInactive
    case ProductReserved:
        return next == ProductSold || next == ProductActive
    case ProductInactive:
        return next == ProductActive
    }
    return false
}

// UnavailableReason returns the machine-readable reason reported to
// callers when a product in status s cannot be claimed.  ACTIVE products
// are claimable and have no reason.
func (s ProductStatus) UnavailableReason() string {
    switch s {
    case ProductReserved:
        return "reserved"
    case ProductSold:
        return "sold"
    case ProductInactive:
        return "inactive"
    }
    return ""
}

// Product mirrors the products table.  Catalog management owns every
// field except Status while a PENDING reservation exists; Status is
// written only by the reservation flow.
//
// Fields:
//  ID                – primary key identifier.
//  Slug              – URL-friendly unique identifier used by the storefront.
//  Name              – display name.
//  Description       – storefront description.
//  PriceCents        – price in grosze.
//  Status            – lifecycle status (see ProductStatus).
//  Featured          – highlighted on the landing page.
//  ProviderProductID – product id at the payment provider, if synced.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Product struct {
    ID                uint64        // products.id
    Slug              string        // products.slug
    Name              string        // products.name
    Description       string        // products.description
    PriceCents        uint32        // products.price_cents
    Status            ProductStatus // products.status
    Featured          bool          // products.featured
    ProviderProductID *string       // products.provider_product_id (nullable)
    CreatedAt         time.Time     // products.created_at
    UpdatedAt         time.Time     // products.updated_at
}
