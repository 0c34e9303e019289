package content

import (
	"path/filepath"
	"strings"
)

// RDF serialization and result media types understood by the server.
const (
	Turtle     = "text/turtle"
	RDFXML     = "application/rdf+xml"
	NTriples   = "application/n-triples"
	NQuads     = "application/n-quads"
	TriG       = "application/trig"
	JSONLD     = "application/ld+json"
	SPARQLJSON = "application/sparql-results+json"
	SPARQLXML  = "application/sparql-results+xml"
	Boolean    = "text/boolean"
	JSON       = "application/json"
	Plain      = "text/plain"
)

var extensions = map[string]string{
	".ttl":    Turtle,
	".turtle": Turtle,
	".rdf":    RDFXML,
	".rdfs":   RDFXML,
	".owl":    RDFXML,
	".xml":    RDFXML,
	".nt":     NTriples,
	".nq":     NQuads,
	".nquads": NQuads,
	".trig":   TriG,
	".jsonld": JSONLD,
	".json":   JSONLD,
}

// ForExtension maps a file name to the RDF media type its extension implies.
// Unknown extensions return the empty string; the payload is never sniffed.
func ForExtension(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}
