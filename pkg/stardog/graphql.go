package stardog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// SchemaVariable is the reserved GraphQL variable that routes a query
// against a named schema instead of the default one. It is a protocol
// convention, not a regular query variable.
const SchemaVariable = "@schema"

// GraphQL runs schema-bound GraphQL queries against the database and
// manages the named schemas they can bind to.
type GraphQL struct {
	conn *Connection
}

// Query executes a GraphQL query. Variables are forwarded as-is; setting
// SchemaVariable selects a named schema. Server-reported GraphQL errors are
// surfaced as *client.ServerError with the message preserved verbatim.
func (g *GraphQL) Query(ctx context.Context, query string, variables map[string]any) ([]map[string]any, error) {
	if err := g.conn.checkOpen(); err != nil {
		return nil, err
	}
	payload := map[string]any{"query": query}
	if len(variables) > 0 {
		payload["variables"] = variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("stardog: encode graphql request: %w", err)
	}
	resp, err := g.conn.client.Do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        "/" + g.conn.db + "/graphql",
		Accept:      content.JSON,
		ContentType: content.JSON,
		Body:        bytes.NewReader(body),
	})
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Data   []map[string]any `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("stardog: decode graphql response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, len(decoded.Errors))
		for i, e := range decoded.Errors {
			messages[i] = e.Message
		}
		return nil, &client.ServerError{StatusCode: resp.StatusCode, Message: strings.Join(messages, "; ")}
	}
	return decoded.Data, nil
}

// AddSchema registers a named schema.
func (g *GraphQL) AddSchema(ctx context.Context, name string, data content.Content) error {
	if err := g.conn.checkOpen(); err != nil {
		return err
	}
	body, err := data.Open()
	if err != nil {
		return err
	}
	defer body.Close()
	_, err = g.conn.client.Do(ctx, client.Request{
		Method: http.MethodPut,
		Path:   g.schemaPath(name),
		Body:   body,
	})
	return err
}

// Schema returns the source text of a named schema.
func (g *GraphQL) Schema(ctx context.Context, name string) (string, error) {
	if err := g.conn.checkOpen(); err != nil {
		return "", err
	}
	resp, err := g.conn.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   g.schemaPath(name),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Schemas lists the registered schema names.
func (g *GraphQL) Schemas(ctx context.Context) ([]string, error) {
	if err := g.conn.checkOpen(); err != nil {
		return nil, err
	}
	resp, err := g.conn.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   "/" + g.conn.db + "/graphql/schemas",
		Accept: content.JSON,
	})
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Schemas []string `json:"schemas"`
	}
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("stardog: decode schema list: %w", err)
	}
	return decoded.Schemas, nil
}

// RemoveSchema deletes one named schema.
func (g *GraphQL) RemoveSchema(ctx context.Context, name string) error {
	if err := g.conn.checkOpen(); err != nil {
		return err
	}
	_, err := g.conn.client.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   g.schemaPath(name),
	})
	return err
}

// ClearSchemas deletes every named schema.
func (g *GraphQL) ClearSchemas(ctx context.Context) error {
	if err := g.conn.checkOpen(); err != nil {
		return err
	}
	_, err := g.conn.client.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   "/" + g.conn.db + "/graphql/schemas",
	})
	return err
}

func (g *GraphQL) schemaPath(name string) string {
	return "/" + g.conn.db + "/graphql/schemas/" + name
}
