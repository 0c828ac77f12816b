package graph

import "strings"

// classifyMediaClass derives a DeviceKind from a node's media.class
// property. An "Audio/Source*" node produces audio (a capture source); a
// "Stream/Output/Audio" node is an application stream. Any other class is
// not an audio device at all and ok is false.
func classifyMediaClass(mediaClass string) (kind DeviceKind, ok bool) {
	switch {
	case strings.HasPrefix(mediaClass, "Audio/Source"):
		return KindInput, true
	case mediaClass == "Stream/Output/Audio":
		return KindOutput, true
	default:
		return 0, false
	}
}

// resolveNick falls back node.nick -> node.description -> node.name, the
// order PipeWire clients conventionally use to pick a human-readable label.
func resolveNick(nick, description, name string) string {
	if nick != "" {
		return nick
	}
	if description != "" {
		return description
	}
	return name
}

// applyPortName assigns a port to the matching stereo-side field(s) of dev,
// per the port-name convention in spec.md §4.A. input_MONO and
// output_MONO/capture_MONO populate both FL and FR of their side; an
// unrecognized port name is ignored (ok is false) rather than erroring —
// PipeWire nodes may expose ports this daemon doesn't care about (e.g.
// control ports) alongside the audio ones it does.
func applyPortName(dev *AudioDevice, port *Port) (ok bool) {
	switch port.Name {
	case "input_FL":
		dev.InputFL = port
	case "input_FR":
		dev.InputFR = port
	case "output_FL", "capture_FL":
		dev.OutputFL = port
	case "output_FR", "capture_FR":
		dev.OutputFR = port
	case "input_MONO":
		dev.InputFL = port
		dev.InputFR = port
	case "output_MONO", "capture_MONO":
		dev.OutputFL = port
		dev.OutputFR = port
	default:
		return false
	}
	return true
}
