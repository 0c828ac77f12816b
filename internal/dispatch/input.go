package dispatch

import (
	"context"

	"pwspd/internal/engine"
	"pwspd/internal/graph"
)

// SelectInput resolves name against the current graph, replaces the
// active link pair (if any) with one from that device into the virtual
// source, and records it as the engine's current input (spec.md §4.B
// "Play algorithm" step 4, by way of Relink, and the Daemon Host's startup
// step 4 both route through this). A GraphUnavailable failure is non-fatal: the caller
// keeps running with linking degraded to a no-op, per spec.md §7.
func (d *Dispatcher) SelectInput(name string) error {
	devices, err := d.graph.Enumerate(context.Background())
	if err != nil {
		return err
	}

	var selected, virtual *graph.AudioDevice
	all := make(map[string]string, len(devices))
	for i := range devices {
		dev := &devices[i]
		if dev.Kind == graph.KindInput {
			all[dev.Name] = dev.Nick
		}
		if dev.Name == name {
			selected = dev
		}
		if dev.Name == graph.VirtualSourceName {
			virtual = dev
		}
	}

	if selected == nil {
		return engine.ErrDeviceNotFound
	}
	if selected.Kind != graph.KindInput {
		return engine.ErrNotAnInput
	}
	if virtual == nil {
		return graph.ErrGraphUnavailable
	}

	link, err := d.graph.CreateLinkPair(selected, virtual)
	if err != nil {
		return err
	}

	d.linkMu.Lock()
	old := d.link
	d.link = link
	d.selected = name
	d.linkMu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	d.engine.SetCurrentInput(name, all)
	return nil
}

// Relink re-establishes the link pair to the currently selected input if
// it is missing (the selected device vanished and has reappeared) or drops
// it if the device has vanished, without forgetting the preference (spec.md
// §4.B "Tick / update" — "if the selected device has disappeared ... drop
// the link and wait — do not delete the preference"). An input counts as
// selected only once a SelectInput call for it has succeeded: a name whose
// first SelectInput failed (for example a persisted default input absent at
// startup) is not recorded, and Relink does not retry it. It is a no-op
// when no input has been selected.
func (d *Dispatcher) Relink() {
	d.linkMu.Lock()
	name := d.selected
	hasLink := d.link != nil
	d.linkMu.Unlock()

	if name == "" {
		return
	}

	devices, err := d.graph.Enumerate(context.Background())
	if err != nil {
		return
	}

	var present bool
	for _, dev := range devices {
		if dev.Name == name && dev.Kind == graph.KindInput {
			present = true
			break
		}
	}

	if !present {
		if hasLink {
			d.linkMu.Lock()
			old := d.link
			d.link = nil
			d.linkMu.Unlock()
			if old != nil {
				_ = old.Close()
			}
		}
		return
	}

	if hasLink {
		return
	}
	if err := d.SelectInput(name); err != nil {
		d.log.Debug("relink attempt failed", "input", name, "err", err)
	}
}
