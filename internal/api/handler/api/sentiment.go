// internal/api/handler/api/sentiment.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/newthinker/marketbias/internal/api/response"
	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/sentiment"
)

const maxBodyBytes = 64 << 10

// SentimentHandler classifies ad hoc headlines and accepts label corrections.
type SentimentHandler struct {
	classifier *sentiment.Classifier
}

// NewSentimentHandler creates a new sentiment handler.
func NewSentimentHandler(c *sentiment.Classifier) *SentimentHandler {
	return &SentimentHandler{classifier: c}
}

// ClassifyRequest is the body of POST /api/v1/sentiment.
type ClassifyRequest struct {
	Headline string `json:"headline"`
}

// ClassifyResult describes how a headline was scored.
type ClassifyResult struct {
	Headline   string         `json:"headline"`
	Score      int            `json:"score"`
	Sentiment  core.Sentiment `json:"sentiment"`
	BiasImpact bool           `json:"bias_impact"`
}

// FeedbackRequest is the body of POST /api/v1/sentiment/feedback.
type FeedbackRequest struct {
	Headline string `json:"headline"`
	Label    string `json:"label"`
}

// Classify scores one headline.
func (h *SentimentHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}
	if strings.TrimSpace(req.Headline) == "" {
		response.Fail(w, core.WrapError(core.ErrBadRequest, fmt.Errorf("headline required")))
		return
	}

	response.JSON(w, http.StatusOK, ClassifyResult{
		Headline:   req.Headline,
		Score:      h.classifier.Score(req.Headline),
		Sentiment:  h.classifier.Analyze(req.Headline),
		BiasImpact: h.classifier.HasBiasImpact(req.Headline),
	})
}

// Feedback records a corrected label for a headline.
func (h *SentimentHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}
	if strings.TrimSpace(req.Headline) == "" {
		response.Fail(w, core.WrapError(core.ErrBadRequest, fmt.Errorf("headline required")))
		return
	}
	label, err := core.ParseSentiment(req.Label)
	if err != nil {
		response.Fail(w, err)
		return
	}

	h.classifier.Correct(req.Headline, label)
	response.JSON(w, http.StatusAccepted, map[string]any{
		"accepted":  true,
		"label":     label,
		"predicted": h.classifier.Analyze(req.Headline),
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.WrapError(core.ErrBadRequest, err)
	}
	return nil
}
