package supabase

import (
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
)

func (c *Client) storage() *storage_go.Client {
	return storage_go.NewClient(c.baseURL+"/storage/v1", c.bearer(), map[string]string{"apikey": c.anonKey})
}

// UploadImage stores an image under path in bucket and returns its public
// URL. Existing objects are overwritten.
func (c *Client) UploadImage(ctx context.Context, bucket, path, contentType string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := true
	resp, err := c.storage().UploadFile(bucket, path, data, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("upload %s: %s", path, resp.Error)
	}
	return c.PublicURL(bucket, path), nil
}

// PublicURL returns the public URL of an object.
func (c *Client) PublicURL(bucket, path string) string {
	return c.storage().GetPublicUrl(bucket, path).SignedURL
}
