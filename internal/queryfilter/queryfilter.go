// Package queryfilter turns whitelisted `field` / `field__op` query
// params into gorm conditions shared by the list and aggregation
// endpoints. Unknown params are ignored; malformed values are errors.
package queryfilter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

var ErrBadFilter = errors.New("malformed filter value")

type Kind int

const (
	String Kind = iota
	Bool
	Time
	UUID
)

type Field struct {
	Column string
	Kind   Kind
}

// Whitelist maps a query-param base name to its column binding.
type Whitelist map[string]Field

// SubmissionFields covers the submission list and aggregation filters.
var SubmissionFields = Whitelist{
	"id":                 {Column: "id", Kind: UUID},
	"original_id":        {Column: "original_id", Kind: String},
	"claimed_by":         {Column: "claimed_by_id", Kind: UUID},
	"completed_by":       {Column: "completed_by_id", Kind: UUID},
	"source":             {Column: "source_name", Kind: String},
	"archived":           {Column: "archived", Kind: Bool},
	"removed_from_queue": {Column: "removed_from_queue", Kind: Bool},
	"approved":           {Column: "approved", Kind: Bool},
	"nsfw":               {Column: "nsfw", Kind: Bool},
	"cannot_ocr":         {Column: "cannot_ocr", Kind: Bool},
	"title":              {Column: "title", Kind: String},
	"url":                {Column: "url", Kind: String},
	"tor_url":            {Column: "tor_url", Kind: String},
	"content_url":        {Column: "content_url", Kind: String},
	"redis_id":           {Column: "redis_id", Kind: String},
	"create_time":        {Column: "create_time", Kind: Time},
	"last_update_time":   {Column: "last_update_time", Kind: Time},
	"claim_time":         {Column: "claim_time", Kind: Time},
	"complete_time":      {Column: "complete_time", Kind: Time},
}

// TranscriptionFields covers the transcription list filters.
var TranscriptionFields = Whitelist{
	"id":                  {Column: "id", Kind: UUID},
	"submission":          {Column: "submission_id", Kind: UUID},
	"author":              {Column: "author_id", Kind: UUID},
	"source":              {Column: "source_name", Kind: String},
	"original_id":         {Column: "original_id", Kind: String},
	"url":                 {Column: "url", Kind: String},
	"text":                {Column: "text", Kind: String},
	"removed_from_reddit": {Column: "removed_from_reddit", Kind: Bool},
	"create_time":         {Column: "create_time", Kind: Time},
}

// UserFields covers the volunteer list filters.
var UserFields = Whitelist{
	"id":           {Column: "id", Kind: UUID},
	"username":     {Column: "username", Kind: String},
	"is_bot":       {Column: "is_bot", Kind: Bool},
	"blocked":      {Column: "blocked", Kind: Bool},
	"accepted_coc": {Column: "accepted_coc", Kind: Bool},
	"join_time":    {Column: "join_time", Kind: Time},
}

// Apply adds every recognized filter param to the query.
func Apply(q *gorm.DB, params map[string]string, wl Whitelist) (*gorm.DB, error) {
	for key, raw := range params {
		base, op := splitOp(key)
		field, ok := wl[base]
		if !ok {
			continue
		}

		switch op {
		case "":
			val, err := parseValue(field.Kind, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%s", ErrBadFilter, key, raw)
			}
			q = q.Where(field.Column+" = ?", val)
		case "gt", "gte", "lt", "lte":
			if field.Kind != Time {
				continue
			}
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%s", ErrBadFilter, key, raw)
			}
			q = q.Where(field.Column+" "+sqlOp(op)+" ?", t)
		case "isnull":
			want, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%s", ErrBadFilter, key, raw)
			}
			if want {
				q = q.Where(field.Column + " IS NULL")
			} else {
				q = q.Where(field.Column + " IS NOT NULL")
			}
		case "icontains":
			if field.Kind != String {
				continue
			}
			q = q.Where("LOWER("+field.Column+") LIKE ?", "%"+strings.ToLower(raw)+"%")
		}
	}
	return q, nil
}

// Order applies an `ordering=field` or `ordering=-field` param against
// the whitelist; unknown fields fall back to the default column.
func Order(q *gorm.DB, ordering, fallback string, wl Whitelist) *gorm.DB {
	if ordering == "" {
		return q.Order(fallback)
	}
	desc := strings.HasPrefix(ordering, "-")
	name := strings.TrimPrefix(ordering, "-")
	field, ok := wl[name]
	if !ok {
		return q.Order(fallback)
	}
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	return q.Order(field.Column + dir)
}

// Page clamps pagination params and returns (offset, limit).
func Page(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return (page - 1) * pageSize, pageSize
}

func splitOp(key string) (string, string) {
	if i := strings.LastIndex(key, "__"); i >= 0 {
		return key[:i], key[i+2:]
	}
	return key, ""
}

func sqlOp(op string) string {
	switch op {
	case "gt":
		return ">"
	case "gte":
		return ">="
	case "lt":
		return "<"
	case "lte":
		return "<="
	}
	return "="
}

func parseValue(kind Kind, raw string) (interface{}, error) {
	switch kind {
	case Bool:
		return strconv.ParseBool(raw)
	case Time:
		return time.Parse(time.RFC3339, raw)
	case UUID:
		return uuid.Parse(raw)
	default:
		return raw, nil
	}
}
