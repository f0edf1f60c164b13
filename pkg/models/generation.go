package models

import (
	"time"
)

// GenerationStatus represents the lifecycle of a generation
type GenerationStatus string

const (
	GenerationStatusQueued     GenerationStatus = "queued"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// ModelCategory distinguishes text-to-video from image-to-video models
type ModelCategory string

const (
	CategoryTextToVideo  ModelCategory = "text-to-video"
	CategoryImageToVideo ModelCategory = "image-to-video"
)

// GenerationModel describes one entry in the model catalog
type GenerationModel struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Category ModelCategory `json:"category"`
}

// Models is the catalog of generation models offered by the studio
var Models = []GenerationModel{
	{ID: "wan2.2-t2v-14b", Name: "Wan 2.2 14B", Category: CategoryTextToVideo},
	{ID: "wan2.1-t2v-480p", Name: "Wan 2.1 480p", Category: CategoryTextToVideo},
	{ID: "ltx2-t2v", Name: "LTX-2 Video", Category: CategoryTextToVideo},
	{ID: "cogvideox-1.5-5b", Name: "CogVideoX 1.5", Category: CategoryTextToVideo},
	{ID: "hunyuan-video-720p", Name: "Hunyuan 720p", Category: CategoryTextToVideo},
	{ID: "wan2.1-i2v-720p", Name: "Wan 2.1 I2V 720p", Category: CategoryImageToVideo},
	{ID: "wan2.2-i2v-14b", Name: "Wan 2.2 I2V 14B", Category: CategoryImageToVideo},
}

// LookupModel returns the catalog entry for a model ID
func LookupModel(id string) (GenerationModel, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return GenerationModel{}, false
}

// GenerationRequest holds user-supplied generation parameters
type GenerationRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	Duration    string `json:"duration"`
	// Image is a base64-encoded seed image for image-to-video models
	Image string `json:"image,omitempty"`
}

// GenerationJob is the queue envelope for one accepted generation. The
// request travels alongside the ledger record because the seed image is not
// persisted there.
type GenerationJob struct {
	Generation *Generation        `json:"generation"`
	Request    *GenerationRequest `json:"request"`
}

// Generation is one entry in the global generation ledger
type Generation struct {
	ID          string           `json:"id" db:"id"`
	UserID      string           `json:"user_id" db:"user_id"`
	Model       string           `json:"model" db:"model"`
	Prompt      string           `json:"prompt" db:"prompt"`
	AspectRatio string           `json:"aspect_ratio" db:"aspect_ratio"`
	Duration    string           `json:"duration" db:"duration"`
	Size        string           `json:"size" db:"size"`
	Status      GenerationStatus `json:"status" db:"status"`
	ErrorMsg    *string          `json:"error_msg,omitempty" db:"error_msg"`
	OutputKey   string           `json:"output_key,omitempty" db:"output_key"`
	OutputURL   string           `json:"output_url,omitempty" db:"output_url"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
}
