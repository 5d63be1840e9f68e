package h

import (
	"maragu.dev/gomponents/html"
)

func ID(v string) H    { return html.ID(v) }
func Class(v string) H { return html.Class(v) }
func Type(v string) H  { return html.Type(v) }
func Src(v string) H   { return html.Src(v) }
func Href(v string) H  { return html.Href(v) }
func Rel(v string) H   { return html.Rel(v) }
func Style(v string) H { return html.Style(v) }

// Data creates a data-* attribute, e.g. Data("on:click", "...") renders data-on:click="...".
func Data(name, v string) H { return html.Data(name, v) }
