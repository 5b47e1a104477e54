package appwrite

import "context"

// PublicClient uses the project identity only.
type PublicClient struct {
	t         *transport
	chunkSize int64
}

func NewPublicClient(cfg Config) *PublicClient {
	return &PublicClient{t: newTransport(cfg, ""), chunkSize: ChunkSize}
}

func (c *PublicClient) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]any, permissions []string) (*Document, error) {
	return createDocument(ctx, c.t, databaseID, collectionID, documentID, data, permissions)
}

func (c *PublicClient) ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...string) (*DocumentList, error) {
	return listDocuments(ctx, c.t, databaseID, collectionID, queries)
}

// CreateFile uploads a blob; bodies larger than ChunkSize are sent in parts.
func (c *PublicClient) CreateFile(ctx context.Context, in UploadInput) (*File, error) {
	return createFile(ctx, c.t, c.chunkSize, in)
}

// FileViewURL returns the public view URL of fileID in bucketID.
func (c *PublicClient) FileViewURL(bucketID, fileID string) string {
	return ViewURL(c.t.endpoint, c.t.project, bucketID, fileID)
}
