package m2m

import "github.com/ooi-datateam/ingestctl/pkg/model"

// Ingest types
type IngestType = model.IngestType
type JobState = model.JobState
type IngestRequest = model.IngestRequest
type IngestFileMask = model.IngestFileMask
type IngestOptions = model.IngestOptions
type IngestRequestRecord = model.IngestRequestRecord
type FileMaskRecord = model.FileMaskRecord
type RefDesParts = model.RefDesParts
type StateChangeRequest = model.StateChangeRequest
type PurgeRequest = model.PurgeRequest
type APIResponse = model.APIResponse
type JobCounts = model.JobCounts

// Annotation types
type AnnotationRecord = model.AnnotationRecord

// Constants
const (
	IngestTypeTelemetered = model.IngestTypeTelemetered
	IngestTypeRecovered   = model.IngestTypeRecovered

	JobStateRun     = model.JobStateRun
	JobStateSuspend = model.JobStateSuspend
	JobStateCancel  = model.JobStateCancel
)
