package dto

// CreateThesisRequest registers a thesis for an approved group.
type CreateThesisRequest struct {
	Title     string `json:"title" validate:"required,max=255"`
	GroupID   string `json:"group_id" validate:"required"`
	AdviserID string `json:"adviser_id" validate:"required"`
}

// DocumentEventRequest reports a document submission or review outcome.
type DocumentEventRequest struct {
	DocumentType string `json:"document_type" validate:"required,oneof=concept proposal research final"`
	Action       string `json:"action" validate:"required,oneof=submitted approved rejected"`
	Feedback     string `json:"feedback" validate:"max=4000"`
}
