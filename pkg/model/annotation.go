package model

// AnnotationClass is the discriminator the annotation endpoint expects.
const AnnotationClass = ".AnnotationRecord"

// QCFlags lists the accepted values of AnnotationRecord.QCFlag. Empty means unset.
var QCFlags = []string{"", "not_operational", "not_available", "pending_ingest", "not_evaluated", "suspect", "fail", "pass"}

// AnnotationRecord is the body of POST anno/ and PUT anno/{id}.
// Nil pointers are sent as JSON null.
type AnnotationRecord struct {
	Class         string  `json:"@class"`
	ID            *int64  `json:"id,omitempty"`
	Subsite       *string `json:"subsite"`
	Node          *string `json:"node"`
	Sensor        *string `json:"sensor"`
	Stream        *string `json:"stream"`
	Method        *string `json:"method"`
	Parameters    []int   `json:"parameters"`
	BeginDT       int64   `json:"beginDT"`
	EndDT         *int64  `json:"endDT"`
	ExclusionFlag bool    `json:"exclusionFlag"`
	QCFlag        *string `json:"qcFlag"`
	Annotation    string  `json:"annotation"`
	Source        *string `json:"source"`
}
