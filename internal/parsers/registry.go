package parsers

import (
	"context"
	"fmt"
	"strings"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/errors"
)

// Registry owns every configured adapter and the detector that selects them.
type Registry struct {
	config     *RegistryConfig
	fixedWidth map[string]FixedWidthLayout
	text       *FixedWidthDecoder
	sheets     []*SheetAdapter
	detector   *Detector
}

// NewRegistry builds the adapters for cfg.
func NewRegistry(cfg *RegistryConfig) (*Registry, error) {
	if cfg == nil {
		cfg = DefaultRegistryConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parsers", cfg, err)
	}

	fixedWidth := BuiltinFixedWidthLayouts()
	for name, layout := range cfg.FixedWidthLayouts {
		if layout.Name == "" {
			layout.Name = name
		}
		fixedWidth[canonicalLayoutName(name)] = layout
	}

	selected := canonicalLayoutName(cfg.FixedWidthLayout)
	if selected == "" {
		selected = DefaultFixedWidthLayout
	}
	layout, ok := fixedWidth[selected]
	if !ok {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "crep_layout", cfg.FixedWidthLayout,
			fmt.Errorf("known layouts: %s", strings.Join(LayoutNames(fixedWidth), ", ")))
	}
	text, err := NewFixedWidthDecoder(layout)
	if err != nil {
		return nil, err
	}

	layouts := mergeSheetLayouts(cfg.SheetLayouts, BuiltinSheetLayouts())
	reg := &Registry{config: cfg, fixedWidth: fixedWidth, text: text}

	var detectable []BankAdapter
	var fallback BankAdapter
	for _, l := range layouts {
		adapter, err := NewSheetAdapter(l, cfg.ReversalKeyword)
		if err != nil {
			return nil, err
		}
		reg.sheets = append(reg.sheets, adapter)
		if l.Name == DefaultSheetLayout {
			fallback = adapter
			continue
		}
		detectable = append(detectable, adapter)
	}
	if fallback == nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sheet_layouts", DefaultSheetLayout,
			fmt.Errorf("default sheet layout is missing"))
	}

	reg.detector = NewDetector(text, detectable, fallback, cfg.PreviewRows)
	return reg, nil
}

func mergeSheetLayouts(overrides, builtin []SheetLayout) []SheetLayout {
	replaced := make(map[string]bool)
	var merged []SheetLayout
	for _, l := range overrides {
		l.Name = canonicalLayoutName(l.Name)
		replaced[l.Name] = true
		merged = append(merged, l)
	}
	for _, l := range builtin {
		if !replaced[l.Name] {
			merged = append(merged, l)
		}
	}
	return merged
}

// Detector returns the format detector.
func (r *Registry) Detector() *Detector { return r.detector }

// FixedWidth returns the configured fixed-width decoder.
func (r *Registry) FixedWidth() *FixedWidthDecoder { return r.text }

// SheetAdapters returns every sheet adapter in detection order, default included.
func (r *Registry) SheetAdapters() []*SheetAdapter { return r.sheets }

// FixedWidthLayouts returns every known CREP revision keyed by name.
func (r *Registry) FixedWidthLayouts() map[string]FixedWidthLayout { return r.fixedWidth }

// Fingerprint identifies the settings that change decode output, for cache keys.
func (r *Registry) Fingerprint() string {
	names := make([]string, 0, len(r.sheets))
	for _, s := range r.sheets {
		names = append(names, s.Name())
	}
	return fmt.Sprintf("%s|%s|%s|%+v|%+v", r.config.ReversalKeyword, r.text.Name(),
		strings.Join(names, ","), r.text.Layout(), r.config.SheetLayouts)
}

// Decode detects the format of a bank file and decodes it.
func (r *Registry) Decode(ctx context.Context, input []byte) (*models.BankSource, error) {
	return r.detector.DecodeAny(ctx, input)
}
