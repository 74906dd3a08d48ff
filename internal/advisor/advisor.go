// Package advisor is the boundary to the AI consultation service.
package advisor

import (
	"context"
	"errors"
)

// ErrEmptyAnswer is returned when the service replies without text.
var ErrEmptyAnswer = errors.New("advisor returned an empty answer")

// Kind selects the kind of consultation.
type Kind string

const (
	KindConsult  Kind = "consult"
	KindForecast Kind = "forecast"
)

// Question is one consultation request.
type Question struct {
	Text   string
	Sign   string
	Period string
	Kind   Kind
	UserID string
}

// Advisor answers free-form astrology questions.
type Advisor interface {
	Consult(ctx context.Context, q Question) (string, error)
}

// Ensure GrpcClient implements Advisor.
var _ Advisor = (*GrpcClient)(nil)
