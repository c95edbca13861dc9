// Package model defines the shared data types for the listing pipeline:
// the Business record extracted from the map source and the Scope that
// bounds deduplication and persistence.
package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Business is one business-listing candidate. Optional numeric fields are
// pointers so "not extracted" stays distinct from a legitimate zero.
type Business struct {
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	City        string   `json:"city"`
	Service     string   `json:"service"`
	State       string   `json:"state"`
	SourceURL   string   `json:"source_url,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	AvgRating   *float64 `json:"avg_rating,omitempty"`
}

// Valid reports whether the record carries enough identity to enter the
// pipeline. A record with neither name nor website is dropped at the boundary.
func (b Business) Valid() bool {
	return strings.TrimSpace(b.Name) != "" || strings.TrimSpace(b.Website) != ""
}

// Scope returns the (city, service) pair this record belongs to.
func (b Business) Scope() Scope {
	return Scope{City: b.City, Service: b.Service}
}

// SetReviews flattens a nested rating/count pair onto the record. The rating
// is rounded to two decimals; a zero rating is treated as not extracted.
func (b *Business) SetReviews(rating float64, count int) {
	if count < 0 {
		count = 0
	}
	b.ReviewCount = &count
	if rating > 0 {
		r := math.Round(rating*100) / 100
		b.AvgRating = &r
	}
}

// Scope is the (city, service) tuple bounding uniqueness and every
// destructive store operation.
type Scope struct {
	City    string `json:"city" yaml:"city"`
	Service string `json:"service" yaml:"service"`
}

// Key returns a stable lowercase map key for the scope.
func (s Scope) Key() string {
	return strings.ToLower(strings.TrimSpace(s.City)) + "|" + strings.ToLower(strings.TrimSpace(s.Service))
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%s", s.City, s.Service)
}

// ParseScope parses "City/service" as used in config eligible-scope lists.
func ParseScope(s string) (Scope, error) {
	city, service, ok := strings.Cut(s, "/")
	city, service = strings.TrimSpace(city), strings.TrimSpace(service)
	if !ok || city == "" || service == "" {
		return Scope{}, eris.Errorf("model: invalid scope %q (want \"City/service\")", s)
	}
	return Scope{City: city, Service: service}, nil
}
