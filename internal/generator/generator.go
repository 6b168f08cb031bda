// Package generator builds stimulus sequences for n-back rounds.
package generator

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/dualnback/internal/model"
)

// DefaultMatchRate is the chance that a channel is forced to repeat the cue N rounds back.
const DefaultMatchRate = 0.3

// DefaultAlphabet is the set of spoken letters. The letters are chosen to sound distinct.
var DefaultAlphabet = []string{"C", "H", "K", "L", "Q", "R", "S", "T"}

// Generator produces stimuli biased toward deliberate n-back matches.
type Generator struct {
	rnd       *rand.Rand
	alphabet  []string
	matchRate float64
}

// New returns a Generator seeded with the current time.
func New(alphabet []string, matchRate float64) *Generator {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()), alphabet, matchRate)
}

// NewWithSource returns a Generator drawing from src.
func NewWithSource(src rand.Source, alphabet []string, matchRate float64) *Generator {
	if len(alphabet) == 0 {
		alphabet = DefaultAlphabet
	}
	letters := make([]string, len(alphabet))
	copy(letters, alphabet)
	return &Generator{rnd: rand.New(src), alphabet: letters, matchRate: matchRate}
}

// Alphabet returns the symbols the generator draws from.
func (g *Generator) Alphabet() []string {
	out := make([]string, len(g.alphabet))
	copy(out, g.alphabet)
	return out
}

// Next returns the stimulus for the round following history.
// Position and letter are forced independently, so a round may match on one channel, both, or neither.
func (g *Generator) Next(history []model.Stimulus, nLevel int) model.Stimulus {
	var target *model.Stimulus
	if nLevel > 0 && len(history) >= nLevel {
		target = &history[len(history)-nLevel]
	}

	position := g.rnd.Intn(model.GridCells)
	if target != nil && g.force() {
		position = target.Position
	}

	letter := g.alphabet[g.rnd.Intn(len(g.alphabet))]
	if target != nil && g.force() {
		letter = target.Letter
	}
	return model.Stimulus{Position: position, Letter: letter}
}

func (g *Generator) force() bool {
	if g.matchRate <= 0 {
		return false
	}
	return g.rnd.Float64() < g.matchRate
}
