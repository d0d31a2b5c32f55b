package controller

import (
	"fmt"
	"sort"
)

// pending is a result held back until the user confirms a warning
type pending struct {
	PendingConfirmation
	seq    uint64
	ticket *ticket
	apply  func()
	cancel string
}

// requestConfirmationLocked parks apply behind a confirmation prompt.
// Prompts are independent; each resolves by its own id.
func (c *Controller) requestConfirmationLocked(t *ticket, reason, message, cancelText string, apply func()) {
	c.pendingSeq++
	p := &pending{
		PendingConfirmation: PendingConfirmation{
			ID:      fmt.Sprintf("confirm-%d", c.pendingSeq),
			Reason:  reason,
			Message: message,
		},
		seq:    c.pendingSeq,
		ticket: t,
		apply:  apply,
		cancel: cancelText,
	}
	c.pending[p.ID] = p
	c.infoLocked("%s", message)

	prompt := p.PendingConfirmation
	c.emit(func(v View) { v.ConfirmationRequested(prompt) })
}

// Confirm applies the held result of the given confirmation. A result
// superseded since the prompt opened is dropped with ErrStale.
func (c *Controller) Confirm(id string) error {
	c.lock()
	defer c.unlock()

	p, err := c.takePendingLocked(id)
	if err != nil {
		return err
	}
	if p.ticket != nil && !c.currentLocked(p.ticket) {
		c.infoLocked("%s", p.cancel)
		return ErrStale
	}
	p.apply()
	c.track("confirmation_accepted", map[string]interface{}{"reason": p.Reason})
	return nil
}

// Cancel drops the held result of the given confirmation
func (c *Controller) Cancel(id string) error {
	c.lock()
	defer c.unlock()

	p, err := c.takePendingLocked(id)
	if err != nil {
		return err
	}
	c.infoLocked("%s", p.cancel)
	c.track("confirmation_cancelled", map[string]interface{}{"reason": p.Reason})
	return nil
}

func (c *Controller) takePendingLocked(id string) (*pending, error) {
	p, ok := c.pending[id]
	if !ok {
		return nil, fmt.Errorf("%w: no pending confirmation %q", ErrValidation, id)
	}
	delete(c.pending, id)
	return p, nil
}

// pendingLocked lists open prompts, oldest first
func (c *Controller) pendingLocked() []PendingConfirmation {
	list := make([]*pending, 0, len(c.pending))
	for _, p := range c.pending {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	prompts := make([]PendingConfirmation, len(list))
	for i, p := range list {
		prompts[i] = p.PendingConfirmation
	}
	return prompts
}
