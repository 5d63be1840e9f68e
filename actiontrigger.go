package tally

import (
	"fmt"

	"github.com/ryanhamamura/tally/h"
)

// actionTrigger represents a trigger to an event handler fn
type actionTrigger struct {
	id string
}

// ID returns the action id used in the /_action/{id} route.
func (a *actionTrigger) ID() string {
	return a.id
}

func actionURL(id string) string {
	return fmt.Sprintf("@get('/_action/%s')", id)
}

// On returns a DOM attribute that runs the action when the named browser
// event fires on the element, e.g. On("dblclick").
func (a *actionTrigger) On(event string) h.H {
	return h.Data("on:"+event, actionURL(a.id))
}

// OnClick returns a DOM attribute that triggers on click. It can be added
// to element nodes in a view.
func (a *actionTrigger) OnClick() h.H {
	return a.On("click")
}
