// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/safehtml/template"
	"github.com/perfexpert/perfexpert/profile"
)

const htmlSource = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>PerfExpert LCPI report</title>
<style>
table.lcpi td.value { text-align: right; }
table.lcpi td.good { color: #080; }
table.lcpi td.fair { color: #a80; }
table.lcpi td.poor { color: #c00; }
table.lcpi td.bad { color: #c00; font-weight: bold; }
p.warning { color: #c00; }
</style>
</head>
<body>
{{- range .}}
<h1>{{.Name}}</h1>
{{- if .Pair}}
<h2>{{.Pair}}</h2>
{{- end}}
<ul class="modules">
{{- range .Modules}}
<li>Module {{.Name}} takes {{.Pct}} of the total runtime</li>
{{- end}}
</ul>
{{- range .Sections}}
<h3>{{.Title}}</h3>
<table class="lcpi">
{{- range .Rows}}
{{- if .Heading}}
<tr><th colspan="3">{{.Heading}}</th></tr>
{{- end}}
<tr>
{{- if eq .Class "good"}}<td class="good">{{.Desc}}</td>
{{- else if eq .Class "fair"}}<td class="fair">{{.Desc}}</td>
{{- else if eq .Class "poor"}}<td class="poor">{{.Desc}}</td>
{{- else if eq .Class "bad"}}<td class="bad">{{.Desc}}</td>
{{- else}}<td>{{.Desc}}</td>
{{- end}}<td class="value">{{.Value}}</td><td>{{.Bar}}</td></tr>
{{- end}}
</table>
{{- range .Warnings}}
<p class="warning">WARNING: {{.}}!</p>
{{- end}}
{{- if .Notice}}
<p class="notice">NOTICE: {{.Notice}}!</p>
{{- end}}
{{- end}}
{{- end}}
</body>
</html>
`

var htmlTemplate = template.Must(template.New("report").Parse(htmlSource))

type htmlPage struct {
	Name     string
	Pair     string
	Modules  []htmlModule
	Sections []htmlSection
}

type htmlModule struct {
	Name, Pct string
}

type htmlSection struct {
	Title    string
	Rows     []htmlRow
	Warnings []string
	Notice   string
}

type htmlRow struct {
	Heading, Desc, Value, Bar, Class string
}

// HTML writes an HTML report of profiles to w. It holds the same
// information as Text.
func HTML(w io.Writer, profiles []*profile.Profile, opts Options) error {
	var pages []htmlPage
	for _, pair := range opts.pairs() {
		for _, p := range profiles {
			page := htmlPage{Name: p.Name}
			if len(opts.pairs()) > 1 {
				page.Pair = fmt.Sprintf("MPI %d / Thread %d", pair[0], pair[1])
			}
			for _, m := range modules(p) {
				page.Modules = append(page.Modules, htmlModule{m.Name, fmt.Sprintf("%.2f%%", m.Importance*100)})
			}
			for _, h := range reported(p, &opts) {
				s := newSection(h, pair[0], pair[1], &opts)
				hs := htmlSection{Title: s.Title, Warnings: s.Warnings, Notice: s.Notice}
				for _, r := range s.Rows {
					hs.Rows = append(hs.Rows, htmlRow{
						Heading: r.Heading,
						Desc:    r.Desc,
						Value:   r.Value,
						Bar:     strings.Repeat(">", r.Bar),
						Class:   r.Level.String(),
					})
				}
				page.Sections = append(page.Sections, hs)
			}
			pages = append(pages, page)
		}
	}
	return htmlTemplate.Execute(w, pages)
}
