package stardog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// VCS exposes the version history of a database. Queries run against the
// version-history graph with the same dispatch rules as regular queries but
// never join a transaction.
type VCS struct {
	conn *Connection
}

// Select runs a select query over the version history.
func (v *VCS) Select(ctx context.Context, query string, opts ...QueryOption) (*SelectResult, error) {
	resp, err := v.conn.runQuery(ctx, v.base(), false, kindSelect, query, opts)
	if err != nil {
		return nil, err
	}
	return decodeSelect(resp.Body)
}

// Paths runs a path query over the version history.
func (v *VCS) Paths(ctx context.Context, query string, opts ...QueryOption) (*SelectResult, error) {
	resp, err := v.conn.runQuery(ctx, v.base(), false, kindPaths, query, opts)
	if err != nil {
		return nil, err
	}
	return decodeSelect(resp.Body)
}

// Ask runs an ask query over the version history.
func (v *VCS) Ask(ctx context.Context, query string, opts ...QueryOption) (bool, error) {
	resp, err := v.conn.runQuery(ctx, v.base(), false, kindAsk, query, opts)
	if err != nil {
		return false, err
	}
	return decodeBoolean(resp.Body)
}

// Graph runs a construct query over the version history.
func (v *VCS) Graph(ctx context.Context, query string, opts ...QueryOption) (string, error) {
	resp, err := v.conn.runQuery(ctx, v.base(), false, kindGraph, query, opts)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// CreateTag labels a revision with a tag name.
func (v *VCS) CreateTag(ctx context.Context, revision, name string) error {
	return v.post(ctx, "/vcs/tags/create", map[string]string{
		"revision": revision,
		"tag":      name,
	})
}

// DeleteTag removes a tag.
func (v *VCS) DeleteTag(ctx context.Context, name string) error {
	return v.post(ctx, "/vcs/tags/delete", map[string]string{"tag": name})
}

// Revert restores the database from one revision to another, recording the
// given commit message in the history.
func (v *VCS) Revert(ctx context.Context, fromRevision, toRevision, message string) error {
	return v.post(ctx, "/vcs/revert", map[string]string{
		"from":    fromRevision,
		"to":      toRevision,
		"message": message,
	})
}

func (v *VCS) base() string { return "/" + v.conn.db + "/vcs" }

func (v *VCS) post(ctx context.Context, path string, payload map[string]string) error {
	if err := v.conn.checkOpen(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("stardog: encode vcs request: %w", err)
	}
	_, err = v.conn.client.Do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        "/" + v.conn.db + path,
		ContentType: content.JSON,
		Body:        bytes.NewReader(body),
	})
	return err
}
