package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Moxie/internal/core/entities"
)

// Every item query takes the viewer id as $1; an empty viewer matches no likes.
const (
	postSelect = `
		SELECT 'POST', p.id, p.id, p.author_id, p.body,
			p.media_key, p.media_mime_type, p.media_size_bytes,
			p.created_at, p.like_count, p.reply_count,
			EXISTS (
				SELECT 1 FROM likes l
				WHERE l.user_id = $1 AND l.target_type = 'POST' AND l.target_id = p.id
			)
		FROM posts p`

	replySelect = `
		SELECT 'REPLY', r.id, r.post_id, r.author_id, r.body,
			r.media_key, r.media_mime_type, r.media_size_bytes,
			r.created_at, r.like_count, 0,
			EXISTS (
				SELECT 1 FROM likes l
				WHERE l.user_id = $1 AND l.target_type = 'REPLY' AND l.target_id = r.id
			)
		FROM replies r`
)

// ListFeed returns the newest posts across all users
func (g *Gateway) ListFeed(ctx context.Context, viewerID string, limit int) ([]entities.ItemView, error) {
	query := postSelect + ` ORDER BY p.created_at DESC, p.id DESC LIMIT $2`
	return g.queryItems(ctx, "listFeed", query, viewerID, listLimit(limit))
}

// ListByAuthor returns a user's posts and replies, newest first
func (g *Gateway) ListByAuthor(ctx context.Context, viewerID, authorID string, limit int) ([]entities.ItemView, error) {
	query := `
		SELECT * FROM (
			` + postSelect + ` WHERE p.author_id = $2
			UNION ALL
			` + replySelect + ` WHERE r.author_id = $2
		) AS items (target_type, id, post_id, author_id, body,
			media_key, media_mime_type, media_size_bytes,
			created_at, like_count, reply_count, liked)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`
	return g.queryItems(ctx, "listByAuthor", query, viewerID, authorID, listLimit(limit))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*entities.ItemView, error) {
	var (
		item                    entities.ItemView
		targetType              string
		mediaKey, mediaMimeType sql.NullString
		mediaSize               sql.NullInt64
	)

	err := row.Scan(
		&targetType, &item.Target.ID, &item.PostID, &item.AuthorID, &item.Body,
		&mediaKey, &mediaMimeType, &mediaSize,
		&item.CreatedAt, &item.LikeCount, &item.ReplyCount, &item.Liked,
	)
	if err != nil {
		return nil, err
	}

	item.Target.Type = entities.TargetType(targetType)
	item.Media = mediaFromColumns(mediaKey, mediaMimeType, mediaSize)
	return &item, nil
}

func (g *Gateway) queryItems(ctx context.Context, op, query string, args ...interface{}) ([]entities.ItemView, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, fmt.Errorf("failed to query items: %w", err))
	}
	defer func() { _ = rows.Close() }()

	items := []entities.ItemView{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, fmt.Errorf("failed to iterate items: %w", err))
	}
	return items, nil
}
