package h

import (
	"maragu.dev/gomponents/html"
)

func Div(children ...H) H    { return html.Div(retype(children)...) }
func Span(children ...H) H   { return html.Span(retype(children)...) }
func P(children ...H) H      { return html.P(retype(children)...) }
func H1(children ...H) H     { return html.H1(retype(children)...) }
func H2(children ...H) H     { return html.H2(retype(children)...) }
func Button(children ...H) H { return html.Button(retype(children)...) }
func Label(children ...H) H  { return html.Label(retype(children)...) }
func Input(children ...H) H  { return html.Input(retype(children)...) }
func Meta(children ...H) H   { return html.Meta(retype(children)...) }
func Link(children ...H) H   { return html.Link(retype(children)...) }
func Script(children ...H) H { return html.Script(retype(children)...) }
func Nav(children ...H) H    { return html.Nav(retype(children)...) }
func A(children ...H) H      { return html.A(retype(children)...) }
