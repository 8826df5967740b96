package sim

import (
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
)

// Capability is the only handle that can change a locked engine. Preview
// methods never touch the engine; Commit applies a previewed transition.
type Capability struct {
	e *Engine
}

func (c *Capability) State() dynamo.State {
	return c.e.state
}

func (c *Capability) Identifier() string {
	return c.e.id
}

func (c *Capability) Config() dynamo.Config {
	return c.e.cfg
}

func (c *Capability) PreviewSnap(index int) (Transition, error) {
	next, err := Snap(c.e.state, index)
	if err != nil {
		return Transition{}, err
	}
	return Transition{State: next, Identifier: c.e.id}, nil
}

func (c *Capability) PreviewReinitialize(input string, profile field.Profile) (Transition, error) {
	return Seed(input, profile, c.e.cfg)
}

// PreviewHold is the no-op transition.
func (c *Capability) PreviewHold() Transition {
	return Transition{State: c.e.state, Identifier: c.e.id}
}

func (c *Capability) Commit(t Transition) {
	c.e.commit(t)
}
