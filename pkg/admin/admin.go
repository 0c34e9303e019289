// Package admin covers the administrative surface the connection layer
// needs for bootstrap: creating and dropping databases and listing users
// and roles. The wider admin REST API is intentionally out of scope.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// Admin issues administrative requests against one server.
type Admin struct {
	client *client.Client
}

// New connects to the server's admin surface and verifies it is reachable.
func New(ctx context.Context, endpoint string, creds client.Credentials, opts ...client.Option) (*Admin, error) {
	cl, err := client.New(endpoint, creds, opts...)
	if err != nil {
		return nil, err
	}
	if err := cl.Alive(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("admin: liveness check failed: %w", err)
	}
	return &Admin{client: cl}, nil
}

// Close releases the transport.
func (a *Admin) Close() {
	a.client.Close()
}

// Databases lists every database on the server.
func (a *Admin) Databases(ctx context.Context) ([]*Database, error) {
	resp, err := a.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   "/admin/databases",
		Accept: content.JSON,
	})
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Databases []string `json:"databases"`
	}
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("admin: decode database list: %w", err)
	}
	dbs := make([]*Database, len(decoded.Databases))
	for i, name := range decoded.Databases {
		dbs[i] = &Database{name: name, admin: a}
	}
	return dbs, nil
}

// Database returns a handle for a database without checking it exists.
func (a *Admin) Database(name string) *Database {
	return &Database{name: name, admin: a}
}

// NewDatabase creates a database with the given options, optionally bulk
// loading the supplied datasets at creation time.
func (a *Admin) NewDatabase(ctx context.Context, name string, options map[string]any, datasets ...content.Content) (*Database, error) {
	if options == nil {
		options = map[string]any{}
	}
	type fileRef struct {
		Filename string `json:"filename"`
	}
	meta := struct {
		Name    string         `json:"dbname"`
		Options map[string]any `json:"options"`
		Files   []fileRef      `json:"files"`
	}{Name: name, Options: options, Files: []fileRef{}}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for _, dataset := range datasets {
		filename := dataset.Name()
		meta.Files = append(meta.Files, fileRef{Filename: filename})
		part, err := form.CreateFormFile(filename, filename)
		if err != nil {
			return nil, fmt.Errorf("admin: build dataset upload: %w", err)
		}
		body, err := dataset.Open()
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, body); err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("admin: read dataset: %w", err)
		}
		_ = body.Close()
	}
	root, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("admin: encode database spec: %w", err)
	}
	if err := form.WriteField("root", string(root)); err != nil {
		return nil, fmt.Errorf("admin: build database spec: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("admin: build database spec: %w", err)
	}

	_, err = a.client.Do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        "/admin/databases",
		ContentType: form.FormDataContentType(),
		Body:        &buf,
	})
	if err != nil {
		return nil, err
	}
	return &Database{name: name, admin: a}, nil
}

// Users lists user names.
func (a *Admin) Users(ctx context.Context) ([]string, error) {
	return a.listField(ctx, "/admin/users", "users")
}

// Roles lists role names.
func (a *Admin) Roles(ctx context.Context) ([]string, error) {
	return a.listField(ctx, "/admin/roles", "roles")
}

func (a *Admin) listField(ctx context.Context, path, field string) ([]string, error) {
	resp, err := a.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   path,
		Accept: content.JSON,
	})
	if err != nil {
		return nil, err
	}
	var decoded map[string][]string
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("admin: decode %s list: %w", field, err)
	}
	return decoded[field], nil
}

// Database is a handle on one database's lifecycle operations.
type Database struct {
	name  string
	admin *Admin
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// Drop deletes the database.
func (d *Database) Drop(ctx context.Context) error {
	_, err := d.admin.client.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   "/admin/databases/" + d.name,
	})
	return err
}

// Online brings the database online.
func (d *Database) Online(ctx context.Context) error {
	return d.put(ctx, "/online")
}

// Offline takes the database offline.
func (d *Database) Offline(ctx context.Context) error {
	return d.put(ctx, "/offline")
}

func (d *Database) put(ctx context.Context, suffix string) error {
	_, err := d.admin.client.Do(ctx, client.Request{
		Method: http.MethodPut,
		Path:   "/admin/databases/" + d.name + suffix,
	})
	return err
}
