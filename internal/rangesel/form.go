package rangesel

import "sync/atomic"

// Field names a control of the companion form.
type Field string

const (
	FieldMin  Field = "input0"
	FieldMax  Field = "input1"
	FieldMode Field = "operator"
)

// Change describes a user edit of the companion form. Enter is set when the
// edit was committed with the Enter key.
type Change struct {
	Field Field
	Enter bool
}

// ChangeHandler receives user edits.
type ChangeHandler interface {
	HandleChange(Change)
}

// ChangeFunc adapts a function to ChangeHandler.
type ChangeFunc func(Change)

func (f ChangeFunc) HandleChange(c Change) { f(c) }

// Inputs is the companion numeric range widget of a line chart: two decimal
// inputs and a mode control. Programmatic Set* calls never notify handlers.
type Inputs interface {
	Min() string
	Max() string
	Mode() Mode
	SetMin(string)
	SetMax(string)
	SetMode(Mode)
	OnChange(ChangeHandler) (unregister func())
}

// Form is the in-process Inputs implementation.
type Form struct {
	min, max string
	mode     Mode
	seq      atomic.Int64
	handlers []formHandler
}

type formHandler struct {
	id int64
	h  ChangeHandler
}

// NewForm returns an empty form in Include mode.
func NewForm() *Form {
	return &Form{mode: Include}
}

func (f *Form) Min() string { return f.min }

func (f *Form) Max() string { return f.max }

func (f *Form) Mode() Mode { return f.mode }

func (f *Form) SetMin(s string) { f.min = s }

func (f *Form) SetMax(s string) { f.max = s }

func (f *Form) SetMode(m Mode) { f.mode = m }

func (f *Form) OnChange(h ChangeHandler) func() {
	id := f.seq.Add(1)
	f.handlers = append(f.handlers, formHandler{id: id, h: h})
	return func() {
		for i, fh := range f.handlers {
			if fh.id == id {
				f.handlers = append(f.handlers[:i], f.handlers[i+1:]...)
				return
			}
		}
	}
}

// Edit applies a user edit to one field and notifies handlers. For
// FieldMode the value is parsed with ParseMode.
func (f *Form) Edit(field Field, value string, enter bool) {
	switch field {
	case FieldMin:
		f.min = value
	case FieldMax:
		f.max = value
	case FieldMode:
		f.mode = ParseMode(value)
	}
	f.notify(Change{Field: field, Enter: enter})
}

// Submit notifies handlers as if the form was submitted with Enter.
func (f *Form) Submit() {
	f.notify(Change{Field: FieldMax, Enter: true})
}

func (f *Form) notify(c Change) {
	handlers := make([]formHandler, len(f.handlers))
	copy(handlers, f.handlers)
	for _, fh := range handlers {
		fh.h.HandleChange(c)
	}
}
