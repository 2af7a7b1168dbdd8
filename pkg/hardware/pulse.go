package hardware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/dougsko/audioroute/pkg/logging"
	"github.com/dougsko/audioroute/pkg/routing"
)

// CommandRunner runs a sound server control command and returns its stdout
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// Run executes the command, folding stderr into the returned error
func (execRunner) Run(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s", msg)
		}
		return out, err
	}
	return out, nil
}

// BluetoothInventory lists connected Bluetooth audio outputs
type BluetoothInventory interface {
	ConnectedAudioOutputs() ([]routing.OutputDevice, error)
}

// PulseConfig configures the Linux sound server adapter
type PulseConfig struct {
	PactlPath   string
	SpeakerSink string
	Runner      CommandRunner
	Bluetooth   BluetoothInventory
}

// PulseAdapter routes audio through PulseAudio or PipeWire (pipewire-pulse)
// using pactl. Bluetooth outputs known to BlueZ but without a sink still count
// for detection.
type PulseAdapter struct {
	pactl       string
	speakerSink string
	runner      CommandRunner
	bluetooth   BluetoothInventory
}

// NewPulseAdapter creates a Linux routing adapter
func NewPulseAdapter(cfg PulseConfig) *PulseAdapter {
	if cfg.PactlPath == "" {
		cfg.PactlPath = "pactl"
	}
	if cfg.Runner == nil {
		cfg.Runner = execRunner{}
	}
	return &PulseAdapter{
		pactl:       cfg.PactlPath,
		speakerSink: cfg.SpeakerSink,
		runner:      cfg.Runner,
		bluetooth:   cfg.Bluetooth,
	}
}

// Name returns the adapter name
func (p *PulseAdapter) Name() string {
	return "pulse"
}

// Close releases the Bluetooth inventory connection, if any
func (p *PulseAdapter) Close() error {
	if c, ok := p.bluetooth.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// pulsePort is one output port of a sink
type pulsePort struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Type         string `json:"type"`
	Priority     int    `json:"priority"`
	Availability string `json:"availability"`
}

// pulseSink is a sink as reported by `pactl -f json list sinks`
type pulseSink struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	State       string            `json:"state"`
	Properties  map[string]string `json:"properties"`
	Ports       []pulsePort       `json:"ports"`
	ActivePort  string            `json:"active_port"`
}

func (s pulseSink) prop(key string) string {
	if s.Properties == nil {
		return ""
	}
	return strings.ToLower(s.Properties[key])
}

func (s pulseSink) isBluetooth() bool {
	return s.prop("device.bus") == "bluetooth" ||
		strings.HasPrefix(s.Name, "bluez_output.") ||
		strings.HasPrefix(s.Name, "bluez_sink.")
}

func (s pulseSink) isNetwork() bool {
	name := strings.ToLower(s.Name)
	for _, marker := range []string{"raop", "airplay", "cast", "dlna", "upnp"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return s.prop("device.api") == "raop"
}

func (s pulseSink) bluetoothKind() routing.OutputDevice {
	profile := s.prop("api.bluez5.profile")
	if profile == "" {
		profile = s.prop("bluetooth.protocol")
	}
	if strings.Contains(profile, "bap") || s.prop("api.bluez5.codec") == "lc3" {
		return routing.BluetoothLowEnergy
	}
	return routing.BluetoothClassic
}

func portAvailable(p pulsePort) bool {
	return p.Availability != "not available"
}

// classifyPort maps a sink port to a device kind. Older servers do not report
// a port type, so the port name is used as a fallback.
func classifyPort(p pulsePort) routing.OutputDevice {
	switch strings.ToLower(p.Type) {
	case "speaker":
		return routing.Speaker
	case "headphones", "headset":
		return routing.WiredHeadset
	case "":
	default:
		return routing.Unknown
	}

	name := strings.ToLower(p.Name)
	switch {
	case strings.Contains(name, "speaker"):
		return routing.Speaker
	case strings.Contains(name, "headphone"), strings.Contains(name, "headset"):
		return routing.WiredHeadset
	default:
		return routing.Unknown
	}
}

// classifySink returns the device kinds a sink contributes
func classifySink(s pulseSink) []routing.OutputDevice {
	switch {
	case s.isBluetooth():
		return []routing.OutputDevice{s.bluetoothKind()}
	case s.isNetwork():
		return []routing.OutputDevice{routing.AirPlayOrCast}
	}

	var devices []routing.OutputDevice
	for _, port := range s.Ports {
		if portAvailable(port) {
			devices = append(devices, classifyPort(port))
		}
	}
	if len(s.Ports) > 0 {
		return devices
	}

	switch s.prop("device.form_factor") {
	case "internal", "speaker":
		return []routing.OutputDevice{routing.Speaker}
	case "headphone", "headset":
		return []routing.OutputDevice{routing.WiredHeadset}
	}
	return classifyLegacySinkName(s.Name)
}

// classifyLegacySinkName classifies a sink from its name alone, used when the
// server cannot describe ports.
func classifyLegacySinkName(name string) []routing.OutputDevice {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "bluez_"):
		return []routing.OutputDevice{routing.BluetoothClassic}
	case strings.Contains(lower, "raop"), strings.Contains(lower, "airplay"):
		return []routing.OutputDevice{routing.AirPlayOrCast}
	case strings.Contains(lower, "hdmi"), strings.Contains(lower, "usb"):
		return []routing.OutputDevice{routing.Unknown}
	case strings.HasPrefix(lower, "alsa_output."):
		return []routing.OutputDevice{routing.Speaker}
	default:
		return []routing.OutputDevice{routing.Unknown}
	}
}

// parseSinksJSON decodes `pactl -f json list sinks`
func parseSinksJSON(data []byte) ([]pulseSink, error) {
	var sinks []pulseSink
	if err := json.Unmarshal(data, &sinks); err != nil {
		return nil, fmt.Errorf("failed to parse sink list: %w", err)
	}
	return sinks, nil
}

// parseSinksShort decodes `pactl list short sinks`:
// index, name, driver, sample spec, state separated by tabs.
func parseSinksShort(data []byte) []pulseSink {
	var sinks []pulseSink
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) < 2 || fields[1] == "" {
			continue
		}
		var index int
		fmt.Sscanf(fields[0], "%d", &index)
		sink := pulseSink{Index: index, Name: fields[1]}
		if len(fields) >= 5 {
			sink.State = fields[4]
		}
		sinks = append(sinks, sink)
	}
	return sinks
}

// listSinks queries the sink inventory, falling back to the short listing on
// servers without JSON output.
func (p *PulseAdapter) listSinks() ([]pulseSink, error) {
	out, err := p.runner.Run(p.pactl, "-f", "json", "list", "sinks")
	if err == nil && len(bytes.TrimSpace(out)) > 0 && bytes.TrimSpace(out)[0] == '[' {
		sinks, perr := parseSinksJSON(out)
		if perr == nil {
			return sinks, nil
		}
		err = perr
	}
	logging.Debugf("pulse", "json sink listing unavailable (%v), using short listing", err)

	out, err = p.runner.Run(p.pactl, "list", "short", "sinks")
	if err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}
	return parseSinksShort(out), nil
}

// EnumerateOutputs lists outputs from the sound server and BlueZ
func (p *PulseAdapter) EnumerateOutputs() ([]routing.OutputDevice, error) {
	sinks, err := p.listSinks()
	if err != nil {
		return nil, err
	}

	var devices []routing.OutputDevice
	for _, sink := range sinks {
		devices = append(devices, classifySink(sink)...)
	}

	if p.bluetooth != nil {
		bt, err := p.bluetooth.ConnectedAudioOutputs()
		if err != nil {
			logging.Warnf("pulse", "bluetooth inventory failed: %v", err)
		} else {
			devices = append(devices, bt...)
		}
	}

	return routing.Dedupe(devices), nil
}

// routeTarget is a sink and, optionally, the port to select on it
type routeTarget struct {
	sink pulseSink
	port string
}

func speakerPort(s pulseSink) string {
	for _, port := range s.Ports {
		if classifyPort(port) == routing.Speaker && portAvailable(port) {
			return port.Name
		}
	}
	return ""
}

func (p *PulseAdapter) speakerTarget(sinks []pulseSink) (routeTarget, error) {
	if p.speakerSink != "" {
		for _, s := range sinks {
			if s.Name == p.speakerSink {
				return routeTarget{sink: s, port: speakerPort(s)}, nil
			}
		}
		return routeTarget{}, fmt.Errorf("configured speaker sink %q not found", p.speakerSink)
	}

	for _, s := range sinks {
		if s.isBluetooth() || s.isNetwork() {
			continue
		}
		if port := speakerPort(s); port != "" {
			return routeTarget{sink: s, port: port}, nil
		}
	}
	for _, s := range sinks {
		if s.prop("device.form_factor") == "internal" {
			return routeTarget{sink: s}, nil
		}
	}
	for _, s := range sinks {
		if len(s.Ports) == 0 && !s.isBluetooth() && !s.isNetwork() {
			if kinds := classifySink(s); len(kinds) == 1 && kinds[0] == routing.Speaker {
				return routeTarget{sink: s}, nil
			}
		}
	}
	return routeTarget{}, fmt.Errorf("no built-in speaker sink found")
}

// externalTarget picks the best external output: Bluetooth first, then a
// wired port, then a network sink.
func (p *PulseAdapter) externalTarget(sinks []pulseSink) (routeTarget, error) {
	for _, s := range sinks {
		if s.isBluetooth() {
			return routeTarget{sink: s}, nil
		}
	}
	for _, s := range sinks {
		if s.isBluetooth() || s.isNetwork() {
			continue
		}
		for _, port := range s.Ports {
			if portAvailable(port) && classifyPort(port) == routing.WiredHeadset {
				return routeTarget{sink: s, port: port.Name}, nil
			}
		}
		if len(s.Ports) == 0 {
			if f := s.prop("device.form_factor"); f == "headphone" || f == "headset" {
				return routeTarget{sink: s}, nil
			}
		}
	}
	for _, s := range sinks {
		if s.isNetwork() {
			return routeTarget{sink: s}, nil
		}
	}
	return routeTarget{}, fmt.Errorf("no external output available")
}

func (p *PulseAdapter) pactlRun(op string, args ...string) ([]byte, error) {
	out, err := p.runner.Run(p.pactl, args...)
	if err != nil {
		return out, newExecutionError(CodeAudioManager, op, err)
	}
	return out, nil
}

// route selects the target sink and port, moves playing streams to it and
// resumes it. The first failing step fails the whole call.
func (p *PulseAdapter) route(t routeTarget) error {
	name := t.sink.Name
	logging.Debug("pulse", "routing output", map[string]interface{}{
		"sink": name,
		"port": t.port,
	})

	if t.port != "" && t.port != t.sink.ActivePort {
		if _, err := p.pactlRun("set-sink-port", "set-sink-port", name, t.port); err != nil {
			return err
		}
	}
	if _, err := p.pactlRun("set-default-sink", "set-default-sink", name); err != nil {
		return err
	}

	out, err := p.pactlRun("list sink-inputs", "list", "short", "sink-inputs")
	if err != nil {
		return err
	}
	for _, id := range parseSinkInputIDs(out) {
		if _, err := p.pactlRun("move-sink-input", "move-sink-input", id, name); err != nil {
			return err
		}
	}

	if _, err := p.pactlRun("activate", "suspend-sink", name, "0"); err != nil {
		return err
	}
	return nil
}

func parseSinkInputIDs(data []byte) []string {
	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			ids = append(ids, fields[0])
		}
	}
	return ids
}

func (p *PulseAdapter) inventory() ([]pulseSink, error) {
	sinks, err := p.listSinks()
	if err != nil {
		return nil, newExecutionError(CodeAudioManager, "list sinks", err)
	}
	return sinks, nil
}

// ApplyForceSpeaker routes all playback to the built-in speaker
func (p *PulseAdapter) ApplyForceSpeaker() error {
	sinks, err := p.inventory()
	if err != nil {
		return err
	}
	target, err := p.speakerTarget(sinks)
	if err != nil {
		return newExecutionError(CodeAudioManager, "select speaker", err)
	}
	return p.route(target)
}

// ApplyDefaultRouting selects the preferred external output, or the speaker
// when preferExternal is false. With no routable external sink the current
// default sink is left alone and the sound server keeps routing.
func (p *PulseAdapter) ApplyDefaultRouting(preferExternal bool) error {
	if !preferExternal {
		return p.ApplyForceSpeaker()
	}

	sinks, err := p.inventory()
	if err != nil {
		return err
	}
	// BlueZ can report a device before its sink exists
	target, err := p.externalTarget(sinks)
	if err != nil {
		logging.Infof("pulse", "%v as a sink, keeping the current default sink", err)
		return nil
	}
	return p.route(target)
}
