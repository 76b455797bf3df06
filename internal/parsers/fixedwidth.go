package parsers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/errors"
	"psp-reconciliation-service/pkg/logger"
)

// Field is a character range of a fixed-width record line.
type Field struct {
	Start  int `json:"start" mapstructure:"start"`
	Length int `json:"length" mapstructure:"length"`
}

// Defined reports whether the field is part of the layout.
func (f Field) Defined() bool {
	return f.Length > 0
}

// End returns the exclusive end offset.
func (f Field) End() int {
	return f.Start + f.Length
}

// Extract returns the trimmed field text, failing when the line is too short.
func (f Field) Extract(line []rune) (string, error) {
	if f.Start < 0 || f.End() > len(line) {
		return "", fmt.Errorf("line has %d characters, field needs [%d,%d)", len(line), f.Start, f.End())
	}
	return strings.TrimSpace(string(line[f.Start:f.End()])), nil
}

// FixedWidthLayout describes one revision of a positional statement format.
// The date is taken either from Date (yyyymmdd) or from Year/Month/Day, and
// the time either from Time (hhmmss) or from Hour/Minute/Second.
type FixedWidthLayout struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
	Bank        string `json:"bank" mapstructure:"bank"`
	Tag         string `json:"tag" mapstructure:"tag"`

	Key       Field `json:"key" mapstructure:"key"`
	Amount    Field `json:"amount" mapstructure:"amount"`
	Channel   Field `json:"channel" mapstructure:"channel"`
	Operation Field `json:"operation" mapstructure:"operation"`

	Date  Field `json:"date" mapstructure:"date"`
	Year  Field `json:"year" mapstructure:"year"`
	Month Field `json:"month" mapstructure:"month"`
	Day   Field `json:"day" mapstructure:"day"`

	Time   Field `json:"time" mapstructure:"time"`
	Hour   Field `json:"hour" mapstructure:"hour"`
	Minute Field `json:"minute" mapstructure:"minute"`
	Second Field `json:"second" mapstructure:"second"`
}

// Validate checks that the layout can produce keys and dates.
func (l *FixedWidthLayout) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("layout name cannot be empty")
	}
	if l.Tag == "" {
		return fmt.Errorf("layout %s: record tag cannot be empty", l.Name)
	}
	if !l.Key.Defined() {
		return fmt.Errorf("layout %s: key field is required", l.Name)
	}
	if !l.Date.Defined() && !(l.Year.Defined() && l.Month.Defined() && l.Day.Defined()) {
		return fmt.Errorf("layout %s: date field or year/month/day fields are required", l.Name)
	}
	return nil
}

// HasTime reports whether the layout carries a time of day.
func (l *FixedWidthLayout) HasTime() bool {
	return l.Time.Defined() || (l.Hour.Defined() && l.Minute.Defined() && l.Second.Defined())
}

// FixedWidthDecoder decodes CREP style text statements.
type FixedWidthDecoder struct {
	layout FixedWidthLayout
	logger logger.Logger
}

// NewFixedWidthDecoder creates a decoder for the given layout.
func NewFixedWidthDecoder(layout FixedWidthLayout) (*FixedWidthDecoder, error) {
	if err := layout.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "crep_layouts", layout.Name, err)
	}
	if layout.Bank == "" {
		layout.Bank = "BCP"
	}

	return &FixedWidthDecoder{
		layout: layout,
		logger: logger.GetGlobalLogger().WithComponent("fixed_width_decoder").WithField("layout", layout.Name),
	}, nil
}

func (d *FixedWidthDecoder) Name() string { return d.layout.Name }

func (d *FixedWidthDecoder) Bank() string { return d.layout.Bank }

// Layout returns the layout the decoder was built with.
func (d *FixedWidthDecoder) Layout() FixedWidthLayout { return d.layout }

// Detect accepts every text input; spreadsheets go to the sheet adapters.
func (d *FixedWidthDecoder) Detect(preview *Preview) bool {
	return preview.Kind == KindText
}

// Decode reads every tagged line. Lines that fail to decode are counted and
// skipped; the batch is never aborted because of a single line.
func (d *FixedWidthDecoder) Decode(ctx context.Context, input []byte) (*models.BankSource, error) {
	text, encoding, err := DecodeText(input)
	if err != nil {
		return nil, err
	}

	source := &models.BankSource{
		Layout:          d.layout.Name,
		Bank:            d.layout.Bank,
		SecondPrecision: d.layout.HasTime(),
	}
	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "decode " + d.layout.Name,
		Logger:    d.logger,
	})

	var decoded []*models.CanonicalTransaction
	for i, line := range strings.Split(text, "\n") {
		if i%1000 == 0 {
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
		}

		line = strings.TrimRight(line, "\r")
		source.Stats.LinesRead++
		progress.Increment()
		if !strings.HasPrefix(line, d.layout.Tag) {
			continue
		}

		tx, err := d.decodeLine([]rune(line))
		if err != nil {
			source.Stats.SkippedLines++
			d.logger.WithError(err).WithField("line", i+1).Debug("Skipping malformed record line")
			continue
		}
		tx.Line = i + 1
		decoded = append(decoded, tx)
	}
	progress.Complete()

	source.Stats.RecordsDecoded = len(decoded)
	source.Transactions = DedupByKey(decoded, &source.Stats)

	d.logger.WithFields(logger.Fields{
		"encoding": encoding,
		"lines":    source.Stats.LinesRead,
		"decoded":  source.Stats.RecordsDecoded,
		"skipped":  source.Stats.SkippedLines,
		"accepted": source.Stats.RecordsAccepted,
	}).Info("Decoded fixed-width statement")

	return source, nil
}

func (d *FixedWidthDecoder) decodeLine(line []rune) (*models.CanonicalTransaction, error) {
	l := &d.layout

	key, err := l.Key.Extract(line)
	if err != nil {
		return nil, err
	}

	tx := &models.CanonicalTransaction{
		PSPTIN: strings.TrimLeft(key, "0"),
		Layout: l.Name,
	}

	if l.Amount.Defined() {
		raw, err := l.Amount.Extract(line)
		if err != nil {
			return nil, err
		}
		tx.Amount = minorUnits(raw)
	}

	if l.Channel.Defined() {
		if tx.Channel, err = l.Channel.Extract(line); err != nil {
			return nil, err
		}
	}

	if l.Operation.Defined() {
		if tx.TransactionID, err = l.Operation.Extract(line); err != nil {
			return nil, err
		}
	} else {
		tx.TransactionID = tx.PSPTIN
	}

	if tx.Timestamp, err = d.timestamp(line); err != nil {
		return nil, err
	}
	return tx, nil
}

func (d *FixedWidthDecoder) timestamp(line []rune) (time.Time, error) {
	l := &d.layout

	date, err := joinFields(line, l.Date, []int{4, 2, 2}, l.Year, l.Month, l.Day)
	if err != nil {
		return time.Time{}, err
	}
	if !l.HasTime() {
		return time.Parse("20060102", date)
	}

	clock, err := joinFields(line, l.Time, []int{2, 2, 2}, l.Hour, l.Minute, l.Second)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("20060102150405", date+clock)
}

// joinFields returns whole when defined, otherwise the parts zero-padded to widths.
func joinFields(line []rune, whole Field, widths []int, parts ...Field) (string, error) {
	if whole.Defined() {
		return whole.Extract(line)
	}

	var b strings.Builder
	for i, part := range parts {
		raw, err := part.Extract(line)
		if err != nil {
			return "", err
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", fmt.Errorf("non numeric date part %q: %w", raw, err)
		}
		fmt.Fprintf(&b, "%0*d", widths[i], n)
	}
	return b.String(), nil
}

// minorUnits converts an all-digit string of cents into an amount. Anything
// else leaves the amount absent.
func minorUnits(raw string) decimal.NullDecimal {
	if raw == "" {
		return decimal.NullDecimal{}
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return decimal.NullDecimal{}
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Shift(-2))
}
