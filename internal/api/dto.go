package api

import (
	"github.com/starford/agevault/internal/journal"
	"github.com/starford/agevault/internal/models"
)

// StageListResponse wraps the files of one stage.
type StageListResponse struct {
	Stage models.Stage        `json:"stage" example:"encrypt"`
	Files []models.StagedFile `json:"files"`
}

// HistoryResponse wraps recent journal entries.
type HistoryResponse struct {
	Entries []journal.Entry `json:"entries"`
}
