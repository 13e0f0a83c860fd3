// Package models contains the GORM models for the products and suppliers
// tables. Domain types in internal/domain carry no ORM tags; the mapping
// lives here.
package models
