// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":  p.timeFormat,
		"floatFormat": p.floatFormat,
		"duration":    p.duration,
		"iconSpace":   iconSpace,
		"lc":          strings.ToLower,
		"uc":          strings.ToUpper,
	}
}

func (p *Presenter) timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	if math.IsInf(val, 0) || math.IsNaN(val) {
		return "unknown"
	}
	return fmt.Sprintf("%.*f", precision, val)
}

// duration renders a duration rounded to whole seconds.
func (p *Presenter) duration(val time.Duration) string {
	return val.Round(time.Second).String()
}

// iconSpace pads an icon so that the text following it starts at the same column
// regardless of the icon's display width.
func iconSpace(icon string) string {
	width := runewidth.StringWidth(icon)
	if width >= 2 {
		return icon + " "
	}
	return icon + strings.Repeat(" ", 2-width+1)
}
