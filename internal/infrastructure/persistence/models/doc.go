// Package models contains GORM persistence models for the billing tables.
// Domain entities stay free of ORM tags; each model converts to and from
// its domain type with ToDomain / FromDomain.
package models
