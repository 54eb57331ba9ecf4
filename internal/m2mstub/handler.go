package m2mstub

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ooi-datateam/ingestctl/internal/refdes"
	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// IngestHandler serves the ingestrequest endpoints.
type IngestHandler struct {
	store *memoryStore
}

func NewIngestHandler(store *memoryStore) *IngestHandler {
	return &IngestHandler{store: store}
}

// RegisterRoutes registers ingest request routes
func (h *IngestHandler) RegisterRoutes(r *gin.RouterGroup) {
	ingest := r.Group(IngestRequestPath)
	{
		ingest.GET("/", h.List)
		ingest.POST("/", h.Create)
		ingest.GET("/jobcounts", h.JobCounts)
		ingest.PUT("/purgerecords", h.Purge)
		ingest.GET("/:id", h.Get)
		ingest.PUT("/:id", h.ChangeState)
	}
}

// statusName renders a status the way M2M does in bodies, e.g. BAD_REQUEST.
func statusName(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

func writeMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg, "statusCode": statusName(status)})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(c, http.StatusBadRequest, fmt.Sprintf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

// List handles GET ingestrequest/
func (h *IngestHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.list())
}

// Get handles GET ingestrequest/:id
func (h *IngestHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, found := h.store.get(id)
	if !found {
		writeMessage(c, http.StatusNotFound, fmt.Sprintf("No ingest request found with id %d", id))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Create handles POST ingestrequest/
func (h *IngestHandler) Create(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	rec := h.store.create(&req)
	c.JSON(http.StatusCreated, model.APIResponse{ID: rec.ID, Message: "Element created successfully.", StatusCode: "CREATED"})
}

// ChangeState handles PUT ingestrequest/:id
func (h *IngestHandler) ChangeState(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.StateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID != 0 && req.ID != id {
		writeMessage(c, http.StatusBadRequest, fmt.Sprintf("body id %d does not match path id %d", req.ID, id))
		return
	}
	state, err := model.ParseJobState(string(req.State))
	if err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, found := h.store.changeState(id, state); !found {
		writeMessage(c, http.StatusNotFound, fmt.Sprintf("No ingest request found with id %d", id))
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{ID: id, Message: "Element updated successfully.", StatusCode: "OK"})
}

// Purge handles PUT ingestrequest/purgerecords
func (h *IngestHandler) Purge(c *gin.Context) {
	var req model.PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Subsite == "" || req.Node == "" || req.Sensor == "" {
		writeMessage(c, http.StatusBadRequest, "subsite, node and sensor are required")
		return
	}
	h.store.purge(req)
	writeMessage(c, http.StatusOK, fmt.Sprintf("Purged records for %s-%s-%s", req.Subsite, req.Node, req.Sensor))
}

// JobCounts handles GET ingestrequest/jobcounts?ingestRequestId=N&groupBy=status
func (h *IngestHandler) JobCounts(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("ingestRequestId"), 10, 64)
	if err != nil {
		writeMessage(c, http.StatusBadRequest, "ingestRequestId is required")
		return
	}
	if groupBy := c.DefaultQuery("groupBy", "status"); groupBy != "status" {
		writeMessage(c, http.StatusBadRequest, fmt.Sprintf("unsupported groupBy %q", groupBy))
		return
	}
	counts, found := h.store.jobCounts(id)
	if !found {
		writeMessage(c, http.StatusNotFound, fmt.Sprintf("No ingest request found with id %d", id))
		return
	}
	c.JSON(http.StatusOK, counts)
}

func validateRequest(req *model.IngestRequest) error {
	if req.Username == "" {
		return errors.New("username is required")
	}
	if _, err := model.ParseIngestType(string(req.Type)); err != nil {
		return err
	}
	if _, err := model.ParseJobState(string(req.State)); err != nil {
		return err
	}
	if len(req.FileMasks) == 0 {
		return errors.New("ingestRequestFileMasks must not be empty")
	}
	for _, fm := range req.FileMasks {
		if fm.ParserDriver == "" || fm.FileMask == "" || fm.RefDes == "" {
			return errors.New("parserDriver, fileMask and refDes are required for every file mask")
		}
		if _, err := refdes.Parse(fm.RefDes); err != nil {
			return err
		}
		if fm.RefDesFinal != "true" && fm.RefDesFinal != "false" {
			return fmt.Errorf("refDesFinal must be \"true\" or \"false\", got %q", fm.RefDesFinal)
		}
	}
	return nil
}

func splitRefDes(s string) model.RefDesParts {
	rd, _ := refdes.Parse(s)
	return model.RefDesParts{Subsite: rd.Subsite, Node: rd.Node, Sensor: rd.Sensor}
}

// AnnotationHandler serves the anno endpoints.
type AnnotationHandler struct {
	store *memoryStore
}

func NewAnnotationHandler(store *memoryStore) *AnnotationHandler {
	return &AnnotationHandler{store: store}
}

// RegisterRoutes registers annotation routes
func (h *AnnotationHandler) RegisterRoutes(r *gin.RouterGroup) {
	anno := r.Group(AnnotationPath)
	{
		anno.POST("/", h.Create)
		anno.PUT("/:id", h.Update)
	}
}

func validateAnnotation(rec *model.AnnotationRecord) error {
	if rec.Class != model.AnnotationClass {
		return fmt.Errorf("@class must be %s", model.AnnotationClass)
	}
	if rec.Subsite == nil || *rec.Subsite == "" {
		return errors.New("subsite is required")
	}
	if rec.EndDT != nil && *rec.EndDT < rec.BeginDT {
		return errors.New("endDT precedes beginDT")
	}
	return nil
}

// Create handles POST anno/
func (h *AnnotationHandler) Create(c *gin.Context) {
	var rec model.AnnotationRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAnnotation(&rec); err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	id := h.store.createAnnotation(rec)
	c.JSON(http.StatusCreated, model.APIResponse{ID: id, Message: "Element created successfully.", StatusCode: "CREATED"})
}

// Update handles PUT anno/:id
func (h *AnnotationHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var rec model.AnnotationRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAnnotation(&rec); err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if !h.store.updateAnnotation(id, rec) {
		writeMessage(c, http.StatusNotFound, fmt.Sprintf("No annotation found with id %d", id))
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{ID: id, Message: "Element updated successfully.", StatusCode: "OK"})
}
