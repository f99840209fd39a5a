package arith

import "fmt"

const (
	maxFreq  = 1<<16 - 17
	freqStep = 16
)

type symFreq struct {
	sym  uint16
	freq uint32
}

// model is an adaptive frequency table. Entries are kept roughly sorted by
// descending frequency: a symbol which overtakes its predecessor swaps
// places with it.
type model struct {
	total uint32
	syms  []symFreq
}

// newModel creates a model over n symbols, of which the first active ones
// start with a frequency of 1 and the rest with 0.
func newModel(n, active int) *model {
	m := &model{syms: make([]symFreq, n)}
	for i := range m.syms {
		m.syms[i].sym = uint16(i)
		if i < active {
			m.syms[i].freq = 1
			m.total++
		}
	}
	return m
}

func (m *model) decode(rc *rangeCoder) (uint16, error) {
	target := rc.target(m.total)
	var acc uint32
	i := 0
	for ; i < len(m.syms); i++ {
		if acc+m.syms[i].freq > target {
			break
		}
		acc += m.syms[i].freq
	}
	if i == len(m.syms) {
		return 0, fmt.Errorf("%w: code beyond model total %d", ErrCorrupt, m.total)
	}
	rc.consume(acc, m.syms[i].freq)
	sym := m.syms[i].sym
	m.syms[i].freq += freqStep
	m.total += freqStep
	if m.total > maxFreq {
		m.halve()
	}
	if i > 0 && m.syms[i].freq > m.syms[i-1].freq {
		m.syms[i], m.syms[i-1] = m.syms[i-1], m.syms[i]
	}
	return sym, nil
}

func (m *model) halve() {
	m.total = 0
	for i := range m.syms {
		m.syms[i].freq -= m.syms[i].freq >> 1
		m.total += m.syms[i].freq
	}
}
