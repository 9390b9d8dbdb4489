package supabase

import (
	"context"
	"fmt"
)

// RowsMissingEmbedding returns up to limit rows of table whose embedding
// column is null, selecting columns.
func (c *Client) RowsMissingEmbedding(ctx context.Context, table, columns string, limit int) ([]map[string]any, error) {
	var rows []map[string]any
	_, err := c.rest(ctx).From(table).
		Select(columns, "", false).
		Is("embedding", "null").
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, wrapError("select "+table, err)
	}
	return rows, nil
}

// UpdateEmbedding writes vec to the embedding column of the row with id.
func (c *Client) UpdateEmbedding(ctx context.Context, table, id string, vec []float32) error {
	_, _, err := c.rest(ctx).From(table).
		Update(map[string]any{"embedding": vec}, "minimal", "").
		Eq("id", id).
		Execute()
	return wrapError(fmt.Sprintf("update %s embedding", table), err)
}
