package stardog

import (
	"context"
	"net/http"
	"net/url"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// IsConsistent reports whether the database (or one named graph) is
// logically consistent under reasoning.
func (c *Connection) IsConsistent(ctx context.Context, graphURI ...string) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	params := url.Values{}
	if g := first(graphURI); g != "" {
		params.Set("graph-uri", g)
	}
	resp, err := c.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   "/" + c.db + "/reasoning/consistency",
		Params: params,
		Accept: content.Boolean,
	})
	if err != nil {
		return false, err
	}
	return decodeBoolean(resp.Body)
}

// ExplainInference returns the proof tree showing how the given statements
// are inferred. Inside an open transaction the uncommitted data is
// considered.
func (c *Connection) ExplainInference(ctx context.Context, data content.Content) ([]Proof, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	mediaType, err := data.MediaType()
	if err != nil {
		return nil, err
	}
	body, err := data.Open()
	if err != nil {
		return nil, err
	}
	defer body.Close()

	path := "/" + c.db + "/reasoning"
	if tx := c.currentTx(); tx != "" {
		path += "/" + tx
	}
	path += "/explain"

	resp, err := c.client.Do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        path,
		Accept:      content.JSON,
		ContentType: mediaType,
		Body:        body,
	})
	if err != nil {
		return nil, err
	}
	return decodeProofs(resp.Body)
}

// ExplainInconsistency returns the proofs of why the database is
// inconsistent. An empty result means no inconsistency was found.
func (c *Connection) ExplainInconsistency(ctx context.Context) ([]Proof, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	resp, err := c.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   "/" + c.db + "/reasoning/consistency/explain",
		Accept: content.JSON,
	})
	if err != nil {
		return nil, err
	}
	return decodeProofs(resp.Body)
}
