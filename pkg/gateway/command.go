package gateway

// Command is one of the routing commands a caller may invoke
type Command int

const (
	ForceAudioToSpeaker Command = iota + 1
	UseDefaultAudioRouting
	IsHeadphonesConnected
)

var commandNames = map[Command]string{
	ForceAudioToSpeaker:    "forceAudioToSpeaker",
	UseDefaultAudioRouting: "useDefaultAudioRouting",
	IsHeadphonesConnected:  "isHeadphonesConnected",
}

// String returns the method name callers use for the command
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "invalid"
}

// IsQuery reports whether the command only reads device state
func (c Command) IsQuery() bool {
	return c == IsHeadphonesConnected
}

// Commands returns the supported commands in a stable order
func Commands() []Command {
	return []Command{ForceAudioToSpeaker, UseDefaultAudioRouting, IsHeadphonesConnected}
}

// ParseCommand matches a method name exactly. Anything outside the
// supported set is rejected with an UNSUPPORTED_COMMAND error.
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, unsupported(name)
}
