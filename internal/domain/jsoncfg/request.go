package jsoncfg

import (
	"strings"

	"adgen/internal/domain"
)

// AdRequestJSON is the body accepted by POST /ads.
type AdRequestJSON struct {
	ID             string `json:"id,omitempty"`
	Prompt         string `json:"prompt"`
	TargetAudience string `json:"targetAudience"`
	BrandInfo      string `json:"brandInfo"`
	Style          string `json:"style,omitempty"`
	Locale         string `json:"locale,omitempty"`
}

const (
	// DefaultLocale is applied when neither the body nor the request carries one.
	DefaultLocale = "en"
	// MaxFieldLength bounds every free-text field.
	MaxFieldLength = 2000
)

// Normalize trims the payload and fills the locale from the request when absent.
func (p *AdRequestJSON) Normalize(preferredLocale string) {
	if p == nil {
		return
	}
	p.ID = strings.TrimSpace(p.ID)
	p.Prompt = strings.TrimSpace(p.Prompt)
	p.TargetAudience = strings.TrimSpace(p.TargetAudience)
	p.BrandInfo = strings.TrimSpace(p.BrandInfo)
	p.Style = strings.TrimSpace(p.Style)
	p.Locale = strings.ToLower(strings.TrimSpace(p.Locale))
	if p.Locale == "" {
		if preferredLocale != "" {
			p.Locale = preferredLocale
		} else {
			p.Locale = DefaultLocale
		}
	}
}

// Validate reports every missing or oversized field at once.
func (p AdRequestJSON) Validate() error {
	var fields []string
	check := func(name, value string, required bool) {
		switch {
		case required && value == "":
			fields = append(fields, name)
		case len(value) > MaxFieldLength:
			fields = append(fields, name+" (too long)")
		}
	}
	check("prompt", p.Prompt, true)
	check("targetAudience", p.TargetAudience, true)
	check("brandInfo", p.BrandInfo, true)
	check("style", p.Style, false)
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Input converts the payload into the domain input.
func (p AdRequestJSON) Input() domain.AdInput {
	return domain.AdInput{
		Prompt:         p.Prompt,
		TargetAudience: p.TargetAudience,
		BrandInfo:      p.BrandInfo,
		Style:          p.Style,
		Locale:         p.Locale,
	}
}
