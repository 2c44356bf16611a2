package search

import (
	"strings"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/models"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// ValidateAlpha rejects hybrid weights outside [0, 1].
func ValidateAlpha(alpha float64) error {
	return config.ValidateAlpha(alpha)
}

// ProcessQuery validates a search request and applies defaults. A request
// without k (k == 0) gets defaultK; a negative k is rejected.
func ProcessQuery(q *models.SearchQuery, defaultK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return rserr.New(rserr.CodeInputEmptyQuery, "query must not be empty")
	}
	if q.K < 0 {
		return rserr.New(rserr.CodeConfigInvalidValue, "k must not be negative", rserr.Field("k", q.K))
	}
	if q.K == 0 {
		q.K = defaultK
	}
	if q.Alpha != nil {
		if err := ValidateAlpha(*q.Alpha); err != nil {
			return err
		}
	}
	return nil
}
