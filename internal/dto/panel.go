package dto

// PanelDecisionRequest is a panel member's vote.
type PanelDecisionRequest struct {
	Decision string `json:"decision" validate:"required"`
	Comments string `json:"comments" validate:"max=4000"`
}
