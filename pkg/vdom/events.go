package vdom

// On binds handler to a host event. The prop is named "on" + event.
func On(event string, handler Handler) Attr {
	return Attr{Key: "on" + event, Value: EventValue(handler)}
}

// Mouse events

func OnClick(h Handler) Attr      { return On("click", h) }
func OnDblClick(h Handler) Attr   { return On("dblclick", h) }
func OnMouseDown(h Handler) Attr  { return On("mousedown", h) }
func OnMouseUp(h Handler) Attr    { return On("mouseup", h) }
func OnMouseEnter(h Handler) Attr { return On("mouseenter", h) }
func OnMouseLeave(h Handler) Attr { return On("mouseleave", h) }

// Keyboard events

func OnKeyDown(h Handler) Attr { return On("keydown", h) }
func OnKeyUp(h Handler) Attr   { return On("keyup", h) }

// Form events

func OnInput(h Handler) Attr  { return On("input", h) }
func OnChange(h Handler) Attr { return On("change", h) }
func OnSubmit(h Handler) Attr { return On("submit", h) }
func OnFocus(h Handler) Attr  { return On("focus", h) }
func OnBlur(h Handler) Attr   { return On("blur", h) }

// Scroll events

func OnScroll(h Handler) Attr { return On("scroll", h) }
