package search

import (
	"context"
	"sync"

	"chat-sync/domain"

	"github.com/blugelabs/bluge"
)

// Index is an in-memory full-text index over the session's text
// messages. Image messages are not indexed. The index lives and dies
// with the session, like the message log itself.
type Index struct {
	mu     sync.Mutex
	writer *bluge.Writer
}

func NewIndex() (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer}, nil
}

func (i *Index) Add(m domain.Message) error {
	if m.IsImage() {
		return nil
	}
	doc := bluge.NewDocument(m.ID).
		AddField(bluge.NewTextField("text", m.Text)).
		AddField(bluge.NewKeywordField("user", m.User))

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the IDs of the best matching messages.
func (i *Index) Search(ctx context.Context, q *Query) ([]string, error) {
	i.mu.Lock()
	reader, err := i.writer.Reader()
	i.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	match := bluge.NewMatchQuery(q.Terms).SetField("text")
	var query bluge.Query = match
	if q.User != "" {
		query = bluge.NewBooleanQuery().
			AddMust(match).
			AddMust(bluge.NewTermQuery(q.User).SetField("user"))
	}

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(q.Limit, query))
	if err != nil {
		return nil, err
	}

	var ids []string
	for {
		next, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		err = next.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}
