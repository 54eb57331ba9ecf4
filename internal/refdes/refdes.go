// Package refdes parses OOI reference designators and decides how each one is
// treated by the ingestion workflow.
package refdes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// ReferenceDesignator identifies one instrument as subsite-node-sensor,
// e.g. GA03FLMA-RIM01-02-CTDMOG000 (the sensor keeps its port prefix).
type ReferenceDesignator struct {
	Subsite string
	Node    string
	Sensor  string
}

// Parse splits a dash-joined designator on its first two dashes.
func Parse(s string) (ReferenceDesignator, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ReferenceDesignator{}, fmt.Errorf("invalid reference designator %q: want subsite-node-sensor", s)
	}
	return ReferenceDesignator{Subsite: parts[0], Node: parts[1], Sensor: parts[2]}, nil
}

func (r ReferenceDesignator) String() string {
	return r.Subsite + "-" + r.Node + "-" + r.Sensor
}

// PurgeRequest returns the body the purge endpoint expects for r.
func (r ReferenceDesignator) PurgeRequest() model.PurgeRequest {
	return model.PurgeRequest{Subsite: r.Subsite, Node: r.Node, Sensor: r.Sensor}
}

// DefaultExclusions are the cabled-array codes ingested through a separate pathway.
var DefaultExclusions = []string{"RS", "CE02SHBP", "CE04OSBP", "CE04OSPD", "CE04OSPS"}

// DefaultWildcardRefDes are the flow-mooring CTDs whose files need the alternate decoder.
var DefaultWildcardRefDes = []string{
	"GA03FLMA-RIM01-02-CTDMOG000", "GA03FLMB-RIM01-02-CTDMOG000",
	"GI03FLMA-RIM01-02-CTDMOG000", "GI03FLMB-RIM01-02-CTDMOG000",
	"GP03FLMA-RIM01-02-CTDMOG000", "GP03FLMB-RIM01-02-CTDMOG000",
	"GS03FLMA-RIM01-02-CTDMOG000", "GS03FLMB-RIM01-02-CTDMOG000",
}

// Classification is the outcome of Classifier.Classify.
type Classification struct {
	// Excluded designators belong to a cabled system and are dropped from the run.
	Excluded bool
	// WildcardDecoder is set for allow-listed designators; it is sent as refDesFinal="false".
	WildcardDecoder bool
}

// Classifier holds the exclusion prefixes and the wildcard allow-list.
// It is immutable and safe for concurrent use.
type Classifier struct {
	exclusions []string
	wildcard   map[string]struct{}
}

// NewClassifier builds a classifier; blank entries are ignored.
func NewClassifier(exclusions, wildcard []string) *Classifier {
	c := &Classifier{wildcard: make(map[string]struct{}, len(wildcard))}
	for _, e := range exclusions {
		if e = strings.TrimSpace(e); e != "" {
			c.exclusions = append(c.exclusions, e)
		}
	}
	sort.Strings(c.exclusions)
	for _, w := range wildcard {
		if w = strings.TrimSpace(w); w != "" {
			c.wildcard[w] = struct{}{}
		}
	}
	return c
}

// DefaultClassifier uses DefaultExclusions and DefaultWildcardRefDes.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultExclusions, DefaultWildcardRefDes)
}

// Classify reports whether refDes is excluded and whether it needs the wildcard decoder.
func (c *Classifier) Classify(refDes string) Classification {
	refDes = strings.TrimSpace(refDes)
	var out Classification
	for _, prefix := range c.exclusions {
		if strings.HasPrefix(refDes, prefix) {
			out.Excluded = true
			break
		}
	}
	_, out.WildcardDecoder = c.wildcard[refDes]
	return out
}

// Exclusions returns a copy of the configured exclusion prefixes.
func (c *Classifier) Exclusions() []string {
	return append([]string(nil), c.exclusions...)
}

// RefDesFinal renders the wildcard flag the way the ingest endpoint expects it.
func RefDesFinal(wildcardDecoder bool) string {
	if wildcardDecoder {
		return "false"
	}
	return "true"
}
