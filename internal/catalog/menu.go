package catalog

import "text/template"

const menuRule = "━━━━━━━━━━━━━━━━━━━━━━━━"

var menuTemplate = template.Must(template.New("menu").Parse(
	"{{.Brand}}\n" + menuRule + "\n\n" +
		"{{range .Sections}}" +
		"{{.Emoji}}  {{.Title}}\n" + menuRule + "\n" +
		"{{if .Description}}{{.Description}}\n\n{{end}}" +
		"{{range .Products}}" +
		"**{{.Name}}**\n{{.Specs}}\n💵 {{.Price}}\n" +
		"{{if .Notes}}{{.Notes}}\n{{end}}" +
		"\n" +
		"{{end}}" +
		"{{end}}" +
		menuRule + "\n\n\"{{.Tagline}}\"\n",
))
