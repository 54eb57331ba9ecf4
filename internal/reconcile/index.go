package reconcile

import (
	"sort"
	"time"

	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// ActiveJob is one file mask of an ingest request already known to the remote system.
// A request with several masks yields several ActiveJobs sharing a JobID.
type ActiveJob struct {
	JobID        int64            `json:"jobId"`
	RefDes       string           `json:"refDes"`
	Type         model.IngestType `json:"type"`
	State        model.JobState   `json:"state"`
	Status       string           `json:"status"`
	FileMask     string           `json:"fileMask"`
	Deployment   int              `json:"deployment"`
	EntryTime    time.Time        `json:"entryTime"`
	ModifiedTime time.Time        `json:"modifiedTime"`
}

// FlattenRecords expands the remote listing into one ActiveJob per file mask.
func FlattenRecords(records []model.IngestRequestRecord) []ActiveJob {
	jobs := make([]ActiveJob, 0, len(records))
	for _, rec := range records {
		for _, fm := range rec.FileMasks {
			jobs = append(jobs, ActiveJob{
				JobID:        rec.ID,
				RefDes:       fm.RefDes.String(),
				Type:         rec.Type,
				State:        rec.State,
				Status:       rec.Status,
				FileMask:     fm.FileMask,
				Deployment:   fm.Deployment,
				EntryTime:    rec.EntryTime(),
				ModifiedTime: rec.ModifiedTime(),
			})
		}
	}
	return jobs
}

// Index is a read-only snapshot of active jobs keyed by reference designator.
// It is never updated during a pass, so it is safe to share between goroutines.
type Index struct {
	byRefDes map[string][]ActiveJob
	total    int
}

// NewIndex builds the index. Duplicate entries for a designator are kept.
func NewIndex(jobs []ActiveJob) *Index {
	ix := &Index{byRefDes: make(map[string][]ActiveJob)}
	for _, job := range jobs {
		ix.byRefDes[job.RefDes] = append(ix.byRefDes[job.RefDes], job)
		ix.total++
	}
	for _, list := range ix.byRefDes {
		sort.SliceStable(list, func(i, j int) bool { return list[i].JobID < list[j].JobID })
	}
	return ix
}

// Lookup returns every job known for refDes.
func (ix *Index) Lookup(refDes string) []ActiveJob {
	return append([]ActiveJob(nil), ix.byRefDes[refDes]...)
}

// RecurringFor returns the RUN jobs of the given type for refDes.
func (ix *Index) RecurringFor(refDes string, ingestType model.IngestType) []ActiveJob {
	var out []ActiveJob
	for _, job := range ix.byRefDes[refDes] {
		if job.State == model.JobStateRun && job.Type == ingestType {
			out = append(out, job)
		}
	}
	return out
}

// Len is the number of indexed file-mask entries.
func (ix *Index) Len() int {
	return ix.total
}

// RefDesCount is the number of distinct designators in the index.
func (ix *Index) RefDesCount() int {
	return len(ix.byRefDes)
}
