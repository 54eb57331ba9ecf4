package m2m

import (
	"context"
	"net/http"
	"strconv"
)

// AnnotationService handles annotation operations.
type AnnotationService struct {
	client *Client
}

// Create submits a new annotation.
func (s *AnnotationService) Create(ctx context.Context, rec *AnnotationRecord) (*APIResponse, error) {
	return s.client.doWrite(ctx, http.MethodPost, annotationPath, rec)
}

// Update replaces the annotation with the given ID.
func (s *AnnotationService) Update(ctx context.Context, id int64, rec *AnnotationRecord) (*APIResponse, error) {
	return s.client.doWrite(ctx, http.MethodPut, annotationPath+strconv.FormatInt(id, 10), rec)
}
