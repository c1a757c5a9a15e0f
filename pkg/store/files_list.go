package store

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/marmos91/syncbox/pkg/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// summaryColumns is the listing projection: everything but the content.
var summaryColumns = []string{
	"id", "store_id", "path", "hash", "size", "extension", "is_binary",
	"created_at", "updated_at", "expires_at",
}

// escapeLike escapes LIKE wildcards in user-supplied filter values so a
// literal % or _ in a path filters literally.
func escapeLike(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `%`, `\%`)
	v = strings.ReplaceAll(v, `_`, `\_`)
	return v
}

// normalize clamps pagination to sane bounds.
func (o *ListOptions) normalize() {
	if o.Limit < 1 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// NormalizeExtensions parses a comma-separated extension filter into
// trimmed, lowercased tokens, dropping empties.
func NormalizeExtensions(csv string) []string {
	var out []string
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// buildFileFilter composes the WHERE clause shared by the page query and
// the total count.
func buildFileFilter(db *gorm.DB, storeID string, opts ListOptions) *gorm.DB {
	q := db.Model(&models.File{}).Where("store_id = ?", storeID)

	if !opts.IncludeDeleted {
		q = q.Where("expires_at IS NULL")
	}
	if opts.PathPrefix != "" {
		q = q.Where(`path LIKE ? ESCAPE '\'`, escapeLike(opts.PathPrefix)+"%")
	}
	if opts.PathContains != "" {
		q = q.Where(`path LIKE ? ESCAPE '\'`, "%"+escapeLike(opts.PathContains)+"%")
	}
	if len(opts.Extensions) > 0 {
		q = q.Where("extension IN ?", opts.Extensions)
	}
	if opts.ContentContains != "" {
		// Case-insensitive, and binary files are excluded implicitly:
		// searching base64 would be meaningless.
		q = q.Where(`LOWER(content) LIKE ? ESCAPE '\' AND is_binary = ?`,
			"%"+strings.ToLower(escapeLike(opts.ContentContains))+"%", false)
	}
	if opts.IsBinary != nil {
		q = q.Where("is_binary = ?", *opts.IsBinary)
	}

	return q
}

// ListFiles returns a filtered, paginated page of file summaries ordered
// by path, plus the total count under the same filters.
func (s *GORMStore) ListFiles(ctx context.Context, storeID string, opts ListOptions) (*FileList, error) {
	opts.normalize()

	var total int64
	if err := buildFileFilter(s.db.WithContext(ctx), storeID, opts).Count(&total).Error; err != nil {
		return nil, err
	}

	files := []*models.File{}
	err := buildFileFilter(s.db.WithContext(ctx), storeID, opts).
		Select(summaryColumns).
		Order("path ASC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&files).Error
	if err != nil {
		return nil, err
	}

	return &FileList{
		Files:  files,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}, nil
}
