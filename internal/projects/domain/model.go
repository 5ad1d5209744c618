package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ElementCount string

const (
	SinglePiece ElementCount = "single"
	MultiPiece  ElementCount = "multi"
)

type DetailLevel string

const (
	DetailBasic    DetailLevel = "basic"
	DetailStandard DetailLevel = "standard"
	DetailHD       DetailLevel = "hd"
)

// Format is a requested output file format.
type Format string

const (
	FormatSTL  Format = "STL"
	FormatOBJ  Format = "OBJ"
	FormatF3D  Format = "F3D"
	FormatSTEP Format = "STEP"
	Format3MF  Format = "3MF"
)

var knownFormats = map[Format]bool{
	FormatSTL: true, FormatOBJ: true, FormatF3D: true, FormatSTEP: true, Format3MF: true,
}

type DeadlineType string

const (
	DeadlineUrgent   DeadlineType = "urgent"
	DeadlineFlexible DeadlineType = "flexible"
	DeadlineNone     DeadlineType = "none"
)

type BudgetBand string

const (
	BudgetUnder100 BudgetBand = "less_100"
	Budget100To300 BudgetBand = "100_300"
	Budget300To500 BudgetBand = "300_500"
	Budget500To1k  BudgetBand = "500_1000"
	BudgetOver1k   BudgetBand = "more_1000"
	BudgetDiscuss  BudgetBand = "discuss"
)

var knownBudgets = map[BudgetBand]bool{
	BudgetUnder100: true, Budget100To300: true, Budget300To500: true,
	Budget500To1k: true, BudgetOver1k: true, BudgetDiscuss: true,
}

// Dimensions are in centimeters. When NoConstraint is set the numeric fields
// must be absent; they are never carried alongside it.
type Dimensions struct {
	NoConstraint bool     `json:"no_constraint"`
	Length       *float64 `json:"length,omitempty"`
	Width        *float64 `json:"width,omitempty"`
	Height       *float64 `json:"height,omitempty"`
}

type Deadline struct {
	Type DeadlineType `json:"type"`
	Date *time.Time   `json:"date,omitempty"`
}

// AttachmentKind is decided once at ingestion from the file extension and
// never re-derived.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentModel    AttachmentKind = "model"
	AttachmentDocument AttachmentKind = "document"
)

type Attachment struct {
	ID       string         `json:"id"`
	URL      string         `json:"url"`
	Kind     AttachmentKind `json:"kind"`
	Position int            `json:"position"`
}

// Fields is the descriptive part of a project: everything the owner supplies
// through the submission wizard. It is replaced wholesale on edit.
type Fields struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Use          string       `json:"use"`
	ElementCount ElementCount `json:"element_count"`
	Dimensions   Dimensions   `json:"dimensions"`
	DetailLevel  DetailLevel  `json:"detail_level"`
	Formats      []Format     `json:"formats"`
	Deadline     Deadline     `json:"deadline"`
	BudgetBand   BudgetBand   `json:"budget_band"`
}

// Project is the central entity. Price stays nil until the first quote and is
// immutable once payment begins.
type Project struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Fields

	Status           Status           `json:"status"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	PaymentSessionID string           `json:"-"`
	Attachments      []Attachment     `json:"attachments"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
