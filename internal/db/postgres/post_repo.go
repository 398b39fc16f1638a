package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"Moxie/internal/core/entities"
	"Moxie/internal/core/media"
)

// CreatePost inserts a post authored by actor
func (g *Gateway) CreatePost(ctx context.Context, actor entities.Actor, body string, m *media.Object) (*entities.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	post := &entities.Post{
		ID:       uuid.NewString(),
		AuthorID: actor.UserID,
		Body:     body,
		Media:    m,
	}
	key, mimeType, size := mediaColumns(m)

	query := `
		INSERT INTO posts (id, author_id, body, media_key, media_mime_type, media_size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := g.db.QueryRowContext(ctx, query,
		post.ID, post.AuthorID, post.Body, key, mimeType, size,
	).Scan(&post.CreatedAt)
	if err != nil {
		return nil, classify("createPost", fmt.Errorf("failed to insert post: %w", err))
	}

	return post, nil
}

// DeletePost removes a post, its likes, its replies and their likes in one transaction.
// The post row is locked first so concurrent replies and likes wait for the delete.
func (g *Gateway) DeletePost(ctx context.Context, actor entities.Actor, id string) (*entities.Deletion, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	postID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var del *entities.Deletion
	err = g.withTx(ctx, "deletePost", func(tx *sql.Tx) error {
		var authorID string
		var mediaKey sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT author_id, media_key FROM posts WHERE id = $1 FOR UPDATE`, postID,
		).Scan(&authorID, &mediaKey)
		if err == sql.ErrNoRows {
			return entities.ErrNotFound
		}
		if err != nil {
			return classify("deletePost", fmt.Errorf("failed to lock post: %w", err))
		}
		if authorID != actor.UserID {
			return entities.ErrUnauthorized
		}

		d := &entities.Deletion{
			Target:   entities.PostTarget(postID.String()),
			AuthorID: authorID,
			PostID:   postID.String(),
		}
		if mediaKey.Valid {
			d.MediaKeys = append(d.MediaKeys, mediaKey.String)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT author_id, media_key FROM replies WHERE post_id = $1 ORDER BY created_at`, postID)
		if err != nil {
			return classify("deletePost", fmt.Errorf("failed to collect replies: %w", err))
		}
		seen := make(map[string]struct{})
		for rows.Next() {
			var replyAuthor string
			var replyMedia sql.NullString
			if err := rows.Scan(&replyAuthor, &replyMedia); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan reply: %w", err)
			}
			if replyMedia.Valid {
				d.MediaKeys = append(d.MediaKeys, replyMedia.String)
			}
			if _, dup := seen[replyAuthor]; !dup {
				seen[replyAuthor] = struct{}{}
				d.ReplyAuthorIDs = append(d.ReplyAuthorIDs, replyAuthor)
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return classify("deletePost", fmt.Errorf("failed to iterate replies: %w", err))
		}
		_ = rows.Close()

		likesQuery := `
			DELETE FROM likes
			WHERE (target_type = 'POST' AND target_id = $1)
			   OR (target_type = 'REPLY' AND target_id IN (SELECT id FROM replies WHERE post_id = $1))`
		if _, err := tx.ExecContext(ctx, likesQuery, postID); err != nil {
			return classify("deletePost", fmt.Errorf("failed to delete likes: %w", err))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE post_id = $1`, postID); err != nil {
			return classify("deletePost", fmt.Errorf("failed to delete replies: %w", err))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, postID); err != nil {
			return classify("deletePost", fmt.Errorf("failed to delete post: %w", err))
		}

		del = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return del, nil
}

// GetPost returns one post aggregate
func (g *Gateway) GetPost(ctx context.Context, viewerID, id string) (*entities.ItemView, error) {
	postID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	query := postSelect + ` WHERE p.id = $2`

	item, err := scanItem(g.db.QueryRowContext(ctx, query, viewerID, postID))
	if err == sql.ErrNoRows {
		return nil, entities.ErrNotFound
	}
	if err != nil {
		return nil, classify("getPost", fmt.Errorf("failed to get post: %w", err))
	}
	return item, nil
}

// isUniqueViolation reports a duplicate key error
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
