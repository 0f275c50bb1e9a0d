// Package engagement implementa o detector de engajamento do lado do cliente:
// a máquina de estados Idle -> Armed -> Shown que decide o único momento de
// mostrar o gate.
//
// Entradas:
//
//   - eventos de scroll (Sample), ponteiro e teclado
//   - dois timers independentes (backstop e max) que mostram o gate mesmo sem scroll
//   - override de preview, que mostra imediatamente
//
// O estado da página (State) pertence a um Detector e não é global, então o
// heurístico roda em teste sem documento real: basta um Viewport e um Clock.
package engagement
