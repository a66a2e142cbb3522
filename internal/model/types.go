// Package model defines the domain types shared across the client.
package model

import "time"

// Kind names one of the two remote resource collections.
type Kind string

const (
	KindProperties Kind = "properties"
	KindClients    Kind = "clients"
)

// Category of a property.
type Category string

const (
	CategoryResidential Category = "residential"
	CategoryCommercial  Category = "commercial"
)

// TransactionType of a property listing.
type TransactionType string

const (
	TransactionSale  TransactionType = "Sale"
	TransactionRent  TransactionType = "Rent"
	TransactionLease TransactionType = "Lease"
)

// Status of a property listing.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusSold      Status = "Sold"
)

// PropertyType distinguishes houses from shops.
type PropertyType string

const (
	PropertyHouse PropertyType = "house"
	PropertyShop  PropertyType = "shop"
)

// Titles is the fixed catalog of property titles offered by the backend.
var Titles = []string{
	"JANTA", "LIG", "MIG", "HIG",
	"26M", "48M", "52M", "60M", "90M", "96M", "120M",
	"Plot", "Others",
}

// Property is a listing as served by the remote API. IDs are assigned by
// the backend and immutable. Exactly one of HouseNo or ShopNo/ShopSize is
// set depending on PropertyType.
type Property struct {
	ID              string          `json:"_id,omitempty"`
	Category        Category        `json:"category,omitempty"`
	TransactionType TransactionType `json:"rentOrSale" validate:"required,oneof=Sale Rent Lease"`
	Status          Status          `json:"status" validate:"required,oneof=Available Sold"`
	PropertyType    PropertyType    `json:"propertyType,omitempty"`

	Sector string `json:"sector,omitempty"`
	Block  string `json:"block,omitempty"`
	Pocket string `json:"pocket,omitempty"`

	HouseNo  string `json:"houseNo,omitempty"`
	ShopNo   string `json:"shopNo,omitempty"`
	ShopSize string `json:"shopSize,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Floor       string `json:"floor,omitempty"`
	BHK         string `json:"bhk,omitempty"`
	Ownership   string `json:"hpOrFreehold,omitempty" validate:"omitempty,oneof=HP Freehold Lease"`

	Price       int64  `json:"price" validate:"required,gt=0"`
	PhoneNumber string `json:"phoneNumber" validate:"required,len=10,numeric"`
	Reference   string `json:"reference,omitempty"`
}

// Client is a roster entry for a prospective buyer, seller or tenant.
// BudgetMin and BudgetMax are free text; no arithmetic is performed on them.
type Client struct {
	ID          string    `json:"_id,omitempty"`
	ClientName  string    `json:"clientName" validate:"required"`
	PhoneNumber string    `json:"phoneNumber" validate:"required,len=10,numeric"`
	Requirement string    `json:"requirement" validate:"required,oneof=Sale Purchase Rent Lease"`
	BudgetMin   string    `json:"budgetMin,omitempty"`
	BudgetMax   string    `json:"budgetMax,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// FilterState holds the per-view user filters. Empty string means unset.
// It is owned by the view binding and never persisted.
type FilterState struct {
	SearchText string
	MinPrice   string
	MaxPrice   string
	BHK        string
	Ownership  string
	Sector     string
	Category   string
}

// Empty reports whether no filter is set.
func (f FilterState) Empty() bool {
	return f == FilterState{}
}

// Pagination mirrors the clients list envelope pagination block.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// PropertyPage is the decoded payload of a properties list response.
type PropertyPage struct {
	Properties []Property `json:"properties"`
}

// ClientPage is the decoded payload of a clients list response.
type ClientPage struct {
	Clients    []Client
	Pagination *Pagination
}
