package submission

import (
	"strings"

	"github.com/Zenkai92/Modelify/internal/projects/domain"
)

// Step is one screen of the request wizard, in fixed order.
type Step int

const (
	StepGeneral         Step = 1 // title, description, intended use
	StepCharacteristics Step = 2 // element count, dimensions, detail level
	StepFormats         Step = 3 // requested output formats
	StepPlanning        Step = 4 // deadline and budget band
	stepCount                = 4
)

func (s Step) Valid() bool { return s >= StepGeneral && s <= StepPlanning }

type GeneralInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Use         string `json:"use"`
}

type CharacteristicsInput struct {
	ElementCount domain.ElementCount `json:"element_count"`
	Dimensions   domain.Dimensions   `json:"dimensions"`
	DetailLevel  domain.DetailLevel  `json:"detail_level"`
}

type FormatsInput struct {
	Formats []domain.Format `json:"formats"`
}

type PlanningInput struct {
	Deadline   domain.Deadline   `json:"deadline"`
	BudgetBand domain.BudgetBand `json:"budget_band"`
}

// StepInput carries the payload for exactly one step.
type StepInput struct {
	General         *GeneralInput         `json:"general,omitempty"`
	Characteristics *CharacteristicsInput `json:"characteristics,omitempty"`
	Formats         *FormatsInput         `json:"formats,omitempty"`
	Planning        *PlanningInput        `json:"planning,omitempty"`
}

// apply merges a step's input into the collected fields. The gate for that
// step must pass before the merge is kept.
func apply(f *domain.Fields, step Step, in StepInput) error {
	switch step {
	case StepGeneral:
		if in.General == nil {
			return &domain.ValidationError{Field: "general", Reason: "step payload missing"}
		}
		f.Title = strings.TrimSpace(in.General.Title)
		f.Description = strings.TrimSpace(in.General.Description)
		f.Use = strings.TrimSpace(in.General.Use)
		return gateGeneral(f)
	case StepCharacteristics:
		if in.Characteristics == nil {
			return &domain.ValidationError{Field: "characteristics", Reason: "step payload missing"}
		}
		f.ElementCount = in.Characteristics.ElementCount
		f.Dimensions = in.Characteristics.Dimensions
		f.DetailLevel = in.Characteristics.DetailLevel
		return gateCharacteristics(f)
	case StepFormats:
		if in.Formats == nil {
			return &domain.ValidationError{Field: "formats", Reason: "step payload missing"}
		}
		f.Formats = in.Formats.Formats
		return gateFormats(f)
	case StepPlanning:
		if in.Planning == nil {
			return &domain.ValidationError{Field: "planning", Reason: "step payload missing"}
		}
		f.Deadline = in.Planning.Deadline
		f.BudgetBand = in.Planning.BudgetBand
		return gatePlanning(f)
	default:
		return &domain.ValidationError{Field: "step", Reason: "unknown step"}
	}
}

func gateGeneral(f *domain.Fields) error {
	if f.Title == "" {
		return &domain.ValidationError{Field: "title", Reason: "required"}
	}
	if f.Description == "" {
		return &domain.ValidationError{Field: "description", Reason: "required"}
	}
	return nil
}

func gateCharacteristics(f *domain.Fields) error {
	switch f.ElementCount {
	case domain.SinglePiece, domain.MultiPiece:
	default:
		return &domain.ValidationError{Field: "element_count", Reason: "must be single or multi"}
	}
	switch f.DetailLevel {
	case domain.DetailBasic, domain.DetailStandard, domain.DetailHD:
	default:
		return &domain.ValidationError{Field: "detail_level", Reason: "must be basic, standard or hd"}
	}
	return f.Dimensions.Validate()
}

func gateFormats(f *domain.Fields) error {
	if len(f.Formats) == 0 {
		return &domain.ValidationError{Field: "formats", Reason: "at least one output format is required"}
	}
	// the full duplicate/known check runs with the complete validation
	return nil
}

// gatePlanning is the final gate: it re-validates the whole collection so
// submit is only reachable with a coherent request.
func gatePlanning(f *domain.Fields) error {
	return f.Validate()
}
