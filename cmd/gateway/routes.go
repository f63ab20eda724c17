package main

import (
	"io"
	"strings"

	"sasapp-gateway/sasapp/domain"

	"github.com/olekukonko/tablewriter"
)

func writeRoutesTable(w io.Writer, routes []domain.Route) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Nome", "Método", "Path", "Script", "Encoding", "Sessão", "Dedupe", "Fallback"})
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: false, Right: false, Top: true, Bottom: true})

	for _, r := range routes {
		enc := string(r.Encoding)
		if enc == "" {
			enc = string(domain.EncodingForm)
		}
		sess := ""
		if r.Session {
			sess = "sim"
		}
		dedupe := ""
		if r.Dedupe != nil {
			dedupe = strings.Join(r.Dedupe.Fields, ",")
			if r.Dedupe.Window > 0 {
				dedupe += " (" + r.Dedupe.Window.String() + ")"
			}
		}
		table.Append([]string{r.Name, r.Method, r.Path, r.Script, enc, sess, dedupe, string(r.Fallback)})
	}
	table.Render()
}
