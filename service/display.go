package service

import (
	"context"
	"errors"
	"fmt"

	"heartpredict/ml"
)

// Tone tells the presentation layer how to colour a result.
type Tone string

const (
	ToneNegative Tone = "negative"
	TonePositive Tone = "positive"
	ToneError    Tone = "error"
)

// Colour is the CSS colour used for the tone.
func (t Tone) Colour() string {
	switch t {
	case ToneNegative:
		return "green"
	case TonePositive:
		return "red"
	default:
		return "orange"
	}
}

// DisplayUpdate is everything the result region needs to render.
type DisplayUpdate struct {
	Text    string   `json:"text"`
	Tone    Tone     `json:"tone"`
	Warning string   `json:"warning,omitempty"`
	Outcome *Outcome `json:"-"`
	Err     error    `json:"-"`
}

// OnPredictRequested is the single entry point for the form's predict action.
// Every error is turned into a displayable update; nothing here panics or exits.
func (s *PredictionService) OnPredictRequested(ctx context.Context, raw map[string]string) DisplayUpdate {
	outcome, err := s.Submit(ctx, raw)
	if err != nil {
		return DisplayUpdate{Text: "Error: " + err.Error(), Tone: ToneError, Err: err}
	}

	update := DisplayUpdate{Outcome: outcome}
	if outcome.Prediction.Label == ml.LabelNoDisease {
		update.Text = fmt.Sprintf("No Heart Disease\nConfidence: %.2f", outcome.Prediction.Confidence)
		update.Tone = ToneNegative
	} else {
		update.Text = fmt.Sprintf("HAS Heart Disease\nConfidence: %.2f", outcome.Prediction.Confidence)
		update.Tone = TonePositive
	}
	if outcome.PersistErr != nil {
		update.Warning = "Warning: " + outcome.PersistErr.Error()
		update.Err = outcome.PersistErr
	}
	return update
}

// IsInputError reports whether err came from a field that could not be converted.
func IsInputError(err error) bool {
	var target *InputConversionError
	return errors.As(err, &target)
}
