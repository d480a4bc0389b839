package database

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 11000 || ce.Code == 11001) {
		return true
	}

	return strings.Contains(err.Error(), "E11000 duplicate key error")
}

// exactFold matches s exactly, ignoring case.
func exactFold(s string) bson.Regex {
	return bson.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
}

// contains matches documents where any of fields contains q, ignoring case.
func contains(q string, fields ...string) bson.A {
	re := bson.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(q)), Options: "i"}
	or := bson.A{}
	for _, f := range fields {
		or = append(or, bson.M{f: re})
	}
	return or
}

// timeRange adds a [after, before) window on field to filter. Zero bounds are open.
func timeRange(filter bson.M, field string, after, before time.Time) {
	r := bson.M{}
	if !after.IsZero() {
		r["$gte"] = after
	}
	if !before.IsZero() {
		r["$lt"] = before
	}
	if len(r) > 0 {
		filter[field] = r
	}
}
