package results

import (
	"errors"
	"time"
)

var (
	// ErrNotFound reports that no record exists for a prediction id. It is a
	// first-class outcome, not a failure.
	ErrNotFound = errors.New("prediction not found")
	// ErrMissingChatID reports a record that cannot be delivered anywhere.
	ErrMissingChatID = errors.New("prediction record has no chat id")
)

// Label is one detected object. Position and size are normalized to the
// frame, so Width*Height is the fraction of the frame the object covers.
type Label struct {
	Class  string  `bson:"class"`
	CX     float64 `bson:"cx,omitempty"`
	CY     float64 `bson:"cy,omitempty"`
	Width  float64 `bson:"width,omitempty"`
	Height float64 `bson:"height,omitempty"`
}

// DetectionResult is the document the external detector writes, keyed by
// prediction id. This service only reads it.
type DetectionResult struct {
	PredictionID     string    `bson:"_id"`
	ChatID           int64     `bson:"chat_id"`
	Labels           []Label   `bson:"labels"`
	PredictedImgPath string    `bson:"predicted_img_path,omitempty"`
	OriginalImgPath  string    `bson:"original_img_path,omitempty"`
	Time             time.Time `bson:"time,omitempty"`
}

// Validate reports whether the record is deliverable.
func (r DetectionResult) Validate() error {
	if r.ChatID == 0 {
		return ErrMissingChatID
	}
	return nil
}
