package motor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyCommand    = errors.New("empty command")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrManualOnly      = errors.New("manual speed control disabled in automatic mode")
)

type CommandKind int

const (
	CommandOn CommandKind = iota
	CommandOff
	CommandForward
	CommandReverse
	CommandReportRPM
	CommandQuit
	CommandAuto
	CommandManual
	CommandSpeedUp
	CommandSpeedDown
	CommandSetSpeed
)

// Command is one parsed line of the command vocabulary.
type Command struct {
	Kind CommandKind
	Arg  float64
}

type commandSpec struct {
	Token       string
	Kind        CommandKind
	HasArg      bool
	ManualOnly  bool
	Description string
}

var commandSpecs = []commandSpec{
	{"on", CommandOn, false, false, "Turn motor on"},
	{"off", CommandOff, false, false, "Turn motor off"},
	{"f", CommandForward, false, false, "Direction forward"},
	{"r", CommandReverse, false, false, "Direction reverse"},
	{"rpm", CommandReportRPM, false, false, "Display current RPM"},
	{"q", CommandQuit, false, false, "Quit"},
	{"auto", CommandAuto, true, false, "Set target RPM and enable automatic control"},
	{"manual", CommandManual, false, false, "Return to manual control mode"},
	{"+", CommandSpeedUp, false, true, "Increase speed by one step"},
	{"-", CommandSpeedDown, false, true, "Decrease speed by one step"},
	{"s", CommandSetSpeed, true, true, "Set speed to N% (0-100)"},
}

// ManualOnly reports whether the command is rejected in automatic mode.
func (c Command) ManualOnly() bool {
	for _, spec := range commandSpecs {
		if spec.Kind == c.Kind {
			return spec.ManualOnly
		}
	}
	return false
}

// ParseCommand parses one line. Tokens are case-sensitive; trailing whitespace and
// line terminators are ignored.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if line == "" {
		return Command{}, ErrEmptyCommand
	}

	token, arg, hasArg := strings.Cut(line, " ")

	for _, spec := range commandSpecs {
		if spec.Token != token {
			continue
		}

		if !spec.HasArg {
			if hasArg {
				return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
			}
			return Command{Kind: spec.Kind}, nil
		}

		if !hasArg {
			return Command{}, fmt.Errorf("%w: %q needs a value", ErrInvalidArgument, token)
		}
		value, err := parseArg(spec.Kind, strings.TrimSpace(arg))
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q: %v", ErrInvalidArgument, line, err)
		}
		return Command{Kind: spec.Kind, Arg: value}, nil
	}

	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
}

// parseArg reads the leading number of arg and ignores anything after it, so "s 50%"
// sets 50 and "s 4.5" sets 4. An argument that does not start with a number is rejected.
func parseArg(kind CommandKind, arg string) (float64, error) {
	if kind == CommandSetSpeed {
		n, err := strconv.Atoi(arg[:scanInt(arg)])
		return float64(n), err
	}
	return strconv.ParseFloat(arg[:scanFloat(arg)], 64)
}

// scanInt returns the length of the optionally signed decimal prefix of s.
func scanInt(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	return i + scanDigits(s[i:])
}

// scanFloat returns the length of the leading [sign]digits[.digits][e[sign]digits]
// prefix of s.
func scanFloat(s string) int {
	i := scanInt(s)
	digits := i > 0 && s[i-1] >= '0' && s[i-1] <= '9'
	if i < len(s) && s[i] == '.' {
		frac := scanDigits(s[i+1:])
		if frac > 0 || digits {
			i += 1 + frac
			digits = true
		}
	}
	if !digits {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		if exp := scanInt(s[i+1:]); exp > 0 && scanDigits(strings.TrimLeft(s[i+1:i+1+exp], "+-")) > 0 {
			i += 1 + exp
		}
	}
	return i
}

func scanDigits(s string) int {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

// Help returns one line per command for the console banner.
func Help() []string {
	lines := make([]string, 0, len(commandSpecs))
	for _, spec := range commandSpecs {
		usage := spec.Token
		if spec.HasArg {
			usage += " N"
		}
		mode := ""
		if spec.ManualOnly {
			mode = " (manual mode)"
		}
		lines = append(lines, fmt.Sprintf("%-10s - %s%s", usage, spec.Description, mode))
	}
	return lines
}
