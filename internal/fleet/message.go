package fleet

// Command is the instruction carried by a Message.
type Command string

const (
	CommandStop    Command = "stop"
	CommandRun     Command = "run"
	CommandDestroy Command = "destroy"
)

// ParseCommand reports whether s names a known command.
func ParseCommand(s string) (Command, bool) {
	switch c := Command(s); c {
	case CommandStop, CommandRun, CommandDestroy:
		return c, true
	default:
		return "", false
	}
}

// Message is an addressed command delivered by a medium. Mediums may
// broadcast a message to every subscriber; each ship filters by TargetID.
type Message struct {
	TargetID string  `json:"id"`
	Command  Command `json:"command"`
}
