package engagement

// FocusTrap prende o foco dentro do modal: Tab e Shift+Tab circulam só entre
// os elementos focáveis do modal.
type FocusTrap struct {
	Focusables int
	active     int
}

// Reset foca o primeiro elemento (o campo de email).
func (f *FocusTrap) Reset() { f.active = 0 }

// Next move o foco; wrapped indica que o comportamento padrão do navegador
// teria saído do modal e foi impedido.
func (f *FocusTrap) Next(shift bool) (index int, wrapped bool) {
	if f.Focusables <= 0 {
		return 0, false
	}
	if shift {
		if f.active == 0 {
			f.active = f.Focusables - 1
			return f.active, true
		}
		f.active--
		return f.active, false
	}
	if f.active == f.Focusables-1 {
		f.active = 0
		return f.active, true
	}
	f.active++
	return f.active, false
}
