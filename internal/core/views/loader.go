package views

import (
	"context"

	"Moxie/internal/core/entities"
)

// Loader fetches the authoritative collection for one context as seen by viewerID
type Loader interface {
	Load(ctx context.Context, viewerID string, vc Context) ([]entities.ItemView, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context, viewerID string, vc Context) ([]entities.ItemView, error)

func (f LoaderFunc) Load(ctx context.Context, viewerID string, vc Context) ([]entities.ItemView, error) {
	return f(ctx, viewerID, vc)
}

type readerLoader struct {
	reader entities.Reader
	limit  int
}

// NewReaderLoader loads view collections from the entity store's read side.
// limit caps list contexts; 0 means the store default.
func NewReaderLoader(reader entities.Reader, limit int) Loader {
	return &readerLoader{reader: reader, limit: limit}
}

func (l *readerLoader) Load(ctx context.Context, viewerID string, vc Context) ([]entities.ItemView, error) {
	if err := vc.Validate(); err != nil {
		return nil, err
	}

	switch vc.Kind {
	case KindFeed:
		return l.reader.ListFeed(ctx, viewerID, l.limit)
	case KindProfile:
		return l.reader.ListByAuthor(ctx, viewerID, vc.ID, l.limit)
	case KindReplyList:
		return l.reader.ListReplies(ctx, viewerID, vc.ID, l.limit)
	default: // KindPostThread
		item, err := l.reader.GetPost(ctx, viewerID, vc.ID)
		if err != nil {
			return nil, err
		}
		return []entities.ItemView{*item}, nil
	}
}
