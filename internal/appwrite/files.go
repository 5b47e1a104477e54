package appwrite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/secnexus/internal/common"
)

// ChunkSize is the largest part sent in one upload request. Larger files are
// uploaded in consecutive Content-Range chunks.
const ChunkSize = 5 * 1024 * 1024

// File is the metadata of a stored blob.
type File struct {
	ID           string   `json:"$id"`
	BucketID     string   `json:"bucketId"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	SizeOriginal int64    `json:"sizeOriginal"`
	Permissions  []string `json:"$permissions"`
}

// UploadInput describes one blob to store.
type UploadInput struct {
	BucketID    string
	FileID      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Permissions []string
}

func createFile(ctx context.Context, t *transport, chunk int64, in UploadInput) (*File, error) {
	if in.Body == nil {
		return nil, uploadError("empty body", nil)
	}
	if chunk <= 0 {
		chunk = ChunkSize
	}
	path := "/storage/buckets/" + esc(in.BucketID) + "/files"

	if in.Size <= chunk {
		data, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, uploadError("read body", err)
		}
		return uploadPart(ctx, t, path, in, data, "")
	}

	var (
		file  *File
		start int64
		buf   = make([]byte, chunk)
	)
	for start < in.Size {
		n, err := io.ReadFull(in.Body, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, uploadError("read body", err)
		}
		if n == 0 {
			return nil, uploadError(fmt.Sprintf("body ended at %d of %d bytes", start, in.Size), nil)
		}
		end := start + int64(n) - 1
		rng := fmt.Sprintf("bytes %d-%d/%d", start, end, in.Size)

		f, err := uploadPart(ctx, t, path, in, buf[:n], rng)
		if err != nil {
			return nil, err
		}
		file = f
		start = end + 1
	}
	return file, nil
}

func uploadPart(ctx context.Context, t *transport, path string, in UploadInput, data []byte, contentRange string) (*File, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("fileId", in.FileID); err != nil {
		return nil, uploadError("encode form", err)
	}
	for _, p := range in.Permissions {
		if err := mw.WriteField("permissions[]", p); err != nil {
			return nil, uploadError("encode form", err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, in.FileName))
	ct := in.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, uploadError("encode form", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, uploadError("encode form", err)
	}
	if err := mw.Close(); err != nil {
		return nil, uploadError("encode form", err)
	}

	req, err := t.newRequest(ctx, http.MethodPost, path, &body)
	if err != nil {
		return nil, asStorageError(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if contentRange != "" {
		req.Header.Set("Content-Range", contentRange)
		req.Header.Set("X-Appwrite-ID", in.FileID)
	}

	var f File
	if err := t.send(req, "upload file", &f); err != nil {
		return nil, asStorageError(err)
	}
	return &f, nil
}

// uploadError reports an upload that failed before the store answered.
func uploadError(msg string, err error) *common.StorageError {
	return &common.StorageError{RemoteError: common.RemoteError{Op: "upload file", Message: msg, Err: err}}
}

// ViewURL is the public URL of a stored file.
func ViewURL(endpoint, project, bucketID, fileID string) string {
	return fmt.Sprintf("%s/storage/buckets/%s/files/%s/view?project=%s&mode=admin",
		strings.TrimRight(endpoint, "/"), esc(bucketID), esc(fileID), url.QueryEscape(project))
}
