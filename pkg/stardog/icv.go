package stardog

import (
	"context"
	"net/http"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// ICV validates the database against integrity constraints and manages the
// persisted constraint set. Validation runs against committed data and is
// independent of any open transaction.
type ICV struct {
	conn *Connection
}

// IsValid reports whether the database satisfies the given constraints.
func (v *ICV) IsValid(ctx context.Context, constraints content.Content) (bool, error) {
	resp, err := v.post(ctx, "/icv/validate", constraints, content.Boolean)
	if err != nil {
		return false, err
	}
	return decodeBoolean(resp.Body)
}

// ExplainViolations returns one proof per constraint violation.
func (v *ICV) ExplainViolations(ctx context.Context, constraints content.Content) ([]Proof, error) {
	resp, err := v.post(ctx, "/icv/violations", constraints, content.JSON)
	if err != nil {
		return nil, err
	}
	return decodeProofs(resp.Body)
}

// Convert translates the constraints into the SPARQL query the server would
// evaluate them with.
func (v *ICV) Convert(ctx context.Context, constraints content.Content) (string, error) {
	resp, err := v.post(ctx, "/icv/convert", constraints, content.Plain)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Add appends constraints to the persisted constraint set.
func (v *ICV) Add(ctx context.Context, constraints content.Content) error {
	_, err := v.post(ctx, "/icv/add", constraints, "")
	return err
}

// Remove deletes constraints from the persisted constraint set.
func (v *ICV) Remove(ctx context.Context, constraints content.Content) error {
	_, err := v.post(ctx, "/icv/remove", constraints, "")
	return err
}

// Clear drops the entire persisted constraint set.
func (v *ICV) Clear(ctx context.Context) error {
	if err := v.conn.checkOpen(); err != nil {
		return err
	}
	_, err := v.conn.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/" + v.conn.db + "/icv/clear",
	})
	return err
}

func (v *ICV) post(ctx context.Context, path string, constraints content.Content, accept string) (*client.Response, error) {
	if err := v.conn.checkOpen(); err != nil {
		return nil, err
	}
	mediaType, err := constraints.MediaType()
	if err != nil {
		return nil, err
	}
	body, err := constraints.Open()
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return v.conn.client.Do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        "/" + v.conn.db + path,
		Accept:      accept,
		ContentType: mediaType,
		Body:        body,
	})
}
