package domain

import "strings"

// Validate checks the descriptive fields against the submission rules. It is
// run at every wizard gate and once more before anything is persisted.
func (f *Fields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if strings.TrimSpace(f.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}

	switch f.ElementCount {
	case SinglePiece, MultiPiece:
	default:
		return &ValidationError{Field: "element_count", Reason: "must be single or multi"}
	}

	switch f.DetailLevel {
	case DetailBasic, DetailStandard, DetailHD:
	default:
		return &ValidationError{Field: "detail_level", Reason: "must be basic, standard or hd"}
	}

	if err := f.Dimensions.Validate(); err != nil {
		return err
	}

	if len(f.Formats) == 0 {
		return &ValidationError{Field: "formats", Reason: "at least one output format is required"}
	}
	seen := make(map[Format]bool, len(f.Formats))
	for _, fm := range f.Formats {
		if !knownFormats[fm] {
			return &ValidationError{Field: "formats", Reason: "unknown format " + string(fm)}
		}
		if seen[fm] {
			return &ValidationError{Field: "formats", Reason: "duplicate format " + string(fm)}
		}
		seen[fm] = true
	}

	switch f.Deadline.Type {
	case DeadlineNone:
		// target date optional and ignored
	case DeadlineUrgent, DeadlineFlexible:
		if f.Deadline.Date == nil {
			return &ValidationError{Field: "deadline", Reason: "target date required unless type is none"}
		}
	default:
		return &ValidationError{Field: "deadline", Reason: "unknown deadline type"}
	}

	if !knownBudgets[f.BudgetBand] {
		return &ValidationError{Field: "budget_band", Reason: "unknown budget band"}
	}

	return nil
}

func (d *Dimensions) Validate() error {
	if d.NoConstraint {
		if d.Length != nil || d.Width != nil || d.Height != nil {
			return &ValidationError{Field: "dimensions", Reason: "numeric dimensions must be absent when unconstrained"}
		}
		return nil
	}
	for _, v := range []*float64{d.Length, d.Width, d.Height} {
		if v == nil {
			return &ValidationError{Field: "dimensions", Reason: "length, width and height are all required"}
		}
		if *v <= 0 {
			return &ValidationError{Field: "dimensions", Reason: "dimensions must be positive"}
		}
	}
	return nil
}
