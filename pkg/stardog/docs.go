package stardog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// Docs is the document store bound to a connection. Document storage sits
// outside the RDF transaction boundary: none of these operations require or
// join an open transaction.
type Docs struct {
	conn *Connection
}

// Size returns the number of stored documents.
func (d *Docs) Size(ctx context.Context) (int64, error) {
	if err := d.conn.checkOpen(); err != nil {
		return 0, err
	}
	resp, err := d.conn.client.Do(ctx, docRequest(d.conn.db, http.MethodGet, "/docs/size"))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(resp.Text()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stardog: parse docs size response %q: %w", resp.Text(), err)
	}
	return n, nil
}

// Add stores a document under the given name, replacing any previous
// version.
func (d *Docs) Add(ctx context.Context, name string, data content.Content) error {
	if err := d.conn.checkOpen(); err != nil {
		return err
	}
	body, err := data.Open()
	if err != nil {
		return err
	}
	defer body.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("upload", name)
	if err != nil {
		return fmt.Errorf("stardog: build document upload: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("stardog: read document content: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("stardog: build document upload: %w", err)
	}

	req := docRequest(d.conn.db, http.MethodPost, "/docs")
	req.ContentType = form.FormDataContentType()
	req.Body = &buf
	_, err = d.conn.client.Do(ctx, req)
	return err
}

// Get retrieves a document fully buffered.
func (d *Docs) Get(ctx context.Context, name string) (string, error) {
	if err := d.conn.checkOpen(); err != nil {
		return "", err
	}
	resp, err := d.conn.client.Do(ctx, docRequest(d.conn.db, http.MethodGet, "/docs/"+name))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GetStream retrieves a document as a scoped chunk stream, sharing the
// single-open-stream contract with Export.
func (d *Docs) GetStream(ctx context.Context, name string, chunkSize int) (*Stream, error) {
	if err := d.conn.acquireStream(); err != nil {
		return nil, err
	}
	resp, err := d.conn.client.DoStream(ctx, docRequest(d.conn.db, http.MethodGet, "/docs/"+name))
	if err != nil {
		d.conn.releaseStream()
		return nil, err
	}
	return newStream(resp.Body, chunkSize, d.conn.releaseStream), nil
}

// Delete removes one document.
func (d *Docs) Delete(ctx context.Context, name string) error {
	if err := d.conn.checkOpen(); err != nil {
		return err
	}
	_, err := d.conn.client.Do(ctx, docRequest(d.conn.db, http.MethodDelete, "/docs/"+name))
	return err
}

// Clear removes every stored document.
func (d *Docs) Clear(ctx context.Context) error {
	if err := d.conn.checkOpen(); err != nil {
		return err
	}
	_, err := d.conn.client.Do(ctx, docRequest(d.conn.db, http.MethodPost, "/docs/clear"))
	return err
}

func docRequest(db, method, path string) client.Request {
	return client.Request{Method: method, Path: "/" + db + path}
}
