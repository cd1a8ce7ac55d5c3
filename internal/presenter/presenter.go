// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"github.com/wneessen/taxiwidget/internal/config"
	"github.com/wneessen/taxiwidget/internal/geocode"
	"github.com/wneessen/taxiwidget/internal/location"
)

const (
	OutputClass = "taxiwidget"

	AltFix   = "fix"
	AltStale = "stale"
	AltNoFix = "nofix"
)

// TemplateContext is the data the text and tooltip templates are executed against.
type TemplateContext struct {
	HasFix bool
	Stale  bool

	Latitude       float64
	Longitude      float64
	Accuracy       string
	AccuracyMeters float64
	Provider       string
	FixTime        time.Time
	Age            time.Duration

	Address    geocode.Address
	Pickup     string
	UpdateTime time.Time
}

// Output is a single line of widget output.
type Output struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
	Alt     string `json:"alt"`
}

type Presenter struct {
	TextTemplate    *template.Template
	TooltipTemplate *template.Template
	staleAfter      time.Duration
}

// New parses the configured templates and renders them once against a sample context so
// that execution errors surface at startup.
func New(conf *config.Config) (*Presenter, error) {
	pres := &Presenter{staleAfter: conf.Intervals.StaleAfter}
	var err error

	pres.TextTemplate, err = template.New("text").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	pres.TooltipTemplate, err = template.New("tooltip").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Tooltip)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tooltip template: %w", err)
	}

	now := time.Now()
	sample := location.NewSample(0, 0, now).WithAccuracy(1).WithProvider(location.ProviderGPS)
	for _, tplCtx := range []TemplateContext{
		pres.BuildContext(location.Sample{}, false, geocode.Address{}, now),
		pres.BuildContext(sample, true, geocode.Address{AddressFound: true}, now),
	} {
		if _, err = pres.Render(tplCtx); err != nil {
			return nil, err
		}
	}

	return pres, nil
}

// BuildContext derives the template context from the best-known sample. haveFix reports
// whether sample is set at all.
func (p *Presenter) BuildContext(sample location.Sample, haveFix bool, addr geocode.Address, now time.Time) TemplateContext {
	tplCtx := TemplateContext{
		HasFix:     haveFix,
		UpdateTime: now,
		Accuracy:   "unknown",
		Provider:   "unknown",
	}
	if !haveFix {
		return tplCtx
	}

	tplCtx.Latitude = sample.Lat
	tplCtx.Longitude = sample.Lon
	tplCtx.AccuracyMeters = sample.AccuracyMeters()
	if acc, ok := sample.Accuracy(); ok {
		tplCtx.Accuracy = strconv.FormatFloat(acc, 'f', 0, 64) + " m"
	}
	if provider, ok := sample.Provider(); ok {
		tplCtx.Provider = provider
	}
	tplCtx.FixTime = sample.At
	tplCtx.Age = max(now.Sub(sample.At), 0)
	tplCtx.Stale = tplCtx.Age > p.staleAfter
	tplCtx.Address = addr
	tplCtx.Pickup = fmt.Sprintf("%.5f, %.5f", sample.Lat, sample.Lon)
	if addr.AddressFound {
		if pickup := addr.Pickup(); pickup != "" {
			tplCtx.Pickup = pickup
		}
	}

	return tplCtx
}

// Render executes both templates and classifies the fix.
func (p *Presenter) Render(tplCtx TemplateContext) (Output, error) {
	out := Output{Class: OutputClass, Alt: AltNoFix}
	switch {
	case tplCtx.HasFix && tplCtx.Stale:
		out.Alt = AltStale
	case tplCtx.HasFix:
		out.Alt = AltFix
	}

	buf := bytes.NewBuffer(nil)
	if err := p.TextTemplate.Execute(buf, tplCtx); err != nil {
		return out, fmt.Errorf("failed to render text template: %w", err)
	}
	out.Text = buf.String()

	buf.Reset()
	if err := p.TooltipTemplate.Execute(buf, tplCtx); err != nil {
		return out, fmt.Errorf("failed to render tooltip template: %w", err)
	}
	out.Tooltip = buf.String()

	return out, nil
}
