package appwrite

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Document is a stored record. Fields holds the attributes that are not
// system fields.
type Document struct {
	ID           string         `json:"$id"`
	CollectionID string         `json:"$collectionId"`
	DatabaseID   string         `json:"$databaseId"`
	CreatedAt    string         `json:"$createdAt"`
	Permissions  []string       `json:"$permissions"`
	Fields       map[string]any `json:"-"`
}

func (d *Document) UnmarshalJSON(b []byte) error {
	type plain Document
	if err := json.Unmarshal(b, (*plain)(d)); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	d.Fields = make(map[string]any, len(all))
	for k, v := range all {
		if len(k) > 0 && k[0] == '$' {
			continue
		}
		d.Fields[k] = v
	}
	return nil
}

// DocumentList is one page of documents.
type DocumentList struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

// Documents is the record surface shared by both clients.
type Documents interface {
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]any, permissions []string) (*Document, error)
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...string) (*DocumentList, error)
}

func createDocument(ctx context.Context, t *transport, databaseID, collectionID, documentID string, data map[string]any, permissions []string) (*Document, error) {
	body := map[string]any{
		"documentId": documentID,
		"data":       data,
	}
	if permissions != nil {
		body["permissions"] = permissions
	}
	var doc Document
	path := "/databases/" + esc(databaseID) + "/collections/" + esc(collectionID) + "/documents"
	if err := t.do(ctx, "create document", http.MethodPost, path, body, &doc); err != nil {
		return nil, asDataError(err)
	}
	return &doc, nil
}

// listDocuments sends queries as built by the SDK's query package.
func listDocuments(ctx context.Context, t *transport, databaseID, collectionID string, queries []string) (*DocumentList, error) {
	path := "/databases/" + esc(databaseID) + "/collections/" + esc(collectionID) + "/documents"
	if len(queries) > 0 {
		v := url.Values{"queries[]": queries}
		path += "?" + v.Encode()
	}
	var list DocumentList
	if err := t.do(ctx, "list documents", http.MethodGet, path, nil, &list); err != nil {
		return nil, asDataError(err)
	}
	return &list, nil
}
