package control

import "codeberg.org/mutker/nvoltctl/internal/inspector"

// ApplyClockOffsets emits the configured clock offsets for every managed
// device as one batch: base offsets first, then memory offsets. A resolved
// zero is omitted, leaving that clock unchanged. This is a single
// best-effort attempt with no retry and no periodic re-application.
func (c *Controller) ApplyClockOffsets() error {
	batch := make([]inspector.Command, 0, 2*len(c.params.Devices))

	for i, device := range c.params.Devices {
		if offset := resolve(c.params.BaseClockOffset, i); offset != 0 {
			batch = append(batch, inspector.BaseClockOffset(device, c.params.PState, offset))
		}
	}
	for i, device := range c.params.Devices {
		if offset := resolve(c.params.MemoryClockOffset, i); offset != 0 {
			batch = append(batch, inspector.MemoryClockOffset(device, c.params.PState, offset))
		}
	}

	if len(batch) == 0 {
		return nil
	}

	c.log.Info().Int("commands", len(batch)).Msg("Applying clock offsets")

	return c.applier.Apply(batch)
}
