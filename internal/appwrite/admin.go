package appwrite

import (
	"context"
	"net/http"
)

// Collection is a document collection.
type Collection struct {
	ID               string   `json:"$id"`
	DatabaseID       string   `json:"databaseId"`
	Name             string   `json:"name"`
	Enabled          bool     `json:"enabled"`
	DocumentSecurity bool     `json:"documentSecurity"`
	Permissions      []string `json:"$permissions"`
}

// Attribute states.
const (
	AttributeAvailable  = "available"
	AttributeProcessing = "processing"
	AttributeFailed     = "failed"
)

// Attribute is a collection column definition.
type Attribute struct {
	Key      string  `json:"key"`
	Type     string  `json:"type"`
	Status   string  `json:"status"`
	Error    string  `json:"error"`
	Required bool    `json:"required"`
	Size     int     `json:"size"`
	Default  *string `json:"default"`
}

// StringAttribute defines a string column.
type StringAttribute struct {
	Key      string
	Size     int
	Required bool
	Default  *string
}

// AdminClient carries the privileged API key. It has every PublicClient
// capability plus schema management.
type AdminClient struct {
	*PublicClient
}

func NewAdminClient(cfg Config, apiKey string) *AdminClient {
	return &AdminClient{PublicClient: &PublicClient{t: newTransport(cfg, apiKey), chunkSize: ChunkSize}}
}

func collectionsPath(databaseID string) string {
	return "/databases/" + esc(databaseID) + "/collections"
}

// CreateCollection creates collectionID in databaseID. A conflict is
// reported as a *common.DataError matching common.ErrAlreadyExists.
func (c *AdminClient) CreateCollection(ctx context.Context, databaseID, collectionID, name string, permissions []string, documentSecurity bool) (*Collection, error) {
	body := map[string]any{
		"collectionId":     collectionID,
		"name":             name,
		"permissions":      permissions,
		"documentSecurity": documentSecurity,
		"enabled":          true,
	}
	var col Collection
	if err := c.t.do(ctx, "create collection", http.MethodPost, collectionsPath(databaseID), body, &col); err != nil {
		return nil, asDataError(err)
	}
	return &col, nil
}

func (c *AdminClient) DeleteCollection(ctx context.Context, databaseID, collectionID string) error {
	path := collectionsPath(databaseID) + "/" + esc(collectionID)
	if err := c.t.do(ctx, "delete collection", http.MethodDelete, path, nil, nil); err != nil {
		return asDataError(err)
	}
	return nil
}

func (c *AdminClient) CreateStringAttribute(ctx context.Context, databaseID, collectionID string, attr StringAttribute) (*Attribute, error) {
	body := map[string]any{
		"key":      attr.Key,
		"size":     attr.Size,
		"required": attr.Required,
	}
	if attr.Default != nil {
		body["default"] = *attr.Default
	}
	path := collectionsPath(databaseID) + "/" + esc(collectionID) + "/attributes/string"
	var a Attribute
	if err := c.t.do(ctx, "create attribute "+attr.Key, http.MethodPost, path, body, &a); err != nil {
		return nil, asDataError(err)
	}
	return &a, nil
}

func (c *AdminClient) GetAttribute(ctx context.Context, databaseID, collectionID, key string) (*Attribute, error) {
	path := collectionsPath(databaseID) + "/" + esc(collectionID) + "/attributes/" + esc(key)
	var a Attribute
	if err := c.t.do(ctx, "get attribute "+key, http.MethodGet, path, nil, &a); err != nil {
		return nil, asDataError(err)
	}
	return &a, nil
}
