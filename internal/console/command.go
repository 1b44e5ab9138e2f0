// internal/console/command.go
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op is a console operation.
type Op int

const (
	OpHelp Op = iota
	OpAuto
	OpManual
	OpPair
	OpAdd
	OpRemove
	OpList
	OpClear
	OpVerbosity
	OpLevel
	OpOn
	OpOff
	OpStats
)

// Target selects a directory. TargetAll is only valid for list.
type Target int

const (
	TargetAll Target = iota
	TargetTX
	TargetTRX
)

func (t Target) String() string {
	switch t {
	case TargetTX:
		return "tx"
	case TargetTRX:
		return "trx"
	default:
		return "all"
	}
}

// Command is one parsed console line.
type Command struct {
	Op     Op
	Target Target
	ID     uint32
	Arg    string // verbosity or level name; empty means "query"
}

var errUsage = errors.New("console: bad command, try 'help'")

// Help lists the accepted commands.
const Help = `commands:
  auto                        pair automatically with any sensor asking
  manual                      pair only with armed ids
  pair <id>                   arm <id> for manual pairing
  add tx|trx <id>             add a sensor
  del tx|trx <id>             remove a sensor
  list [tx|trx]               list sensors
  clear tx|trx                remove every sensor of one kind
  verbosity [only_known|all_valid|all]
  level [debug|info|warn|error]
  on <id> | off <id>          switch a transceiver
  stats                       receive queue and report counters
  help`

// Parse turns a console line into a Command.
// IDs may be decimal or 0x-prefixed hex.
func Parse(line string) (Command, error) {
	f := strings.Fields(strings.ToLower(line))
	if len(f) == 0 {
		return Command{}, errUsage
	}

	switch f[0] {
	case "help", "h", "?":
		return Command{Op: OpHelp}, nil
	case "auto", "a":
		return noArgs(f, OpAuto)
	case "manual", "m":
		return noArgs(f, OpManual)
	case "stats":
		return noArgs(f, OpStats)

	case "pair", "p":
		return withID(f, OpPair)
	case "on":
		return withID(f, OpOn)
	case "off":
		return withID(f, OpOff)

	case "add":
		return withTargetID(f, OpAdd)
	case "del", "delete", "rm", "remove":
		return withTargetID(f, OpRemove)

	case "clear":
		if len(f) != 2 {
			return Command{}, errUsage
		}
		t, err := parseTarget(f[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpClear, Target: t}, nil

	case "list", "ls", "l":
		switch len(f) {
		case 1:
			return Command{Op: OpList, Target: TargetAll}, nil
		case 2:
			t, err := parseTarget(f[1])
			if err != nil {
				return Command{}, err
			}
			return Command{Op: OpList, Target: t}, nil
		}
		return Command{}, errUsage

	case "verbosity", "v":
		return optionalArg(f, OpVerbosity)
	case "level", "log":
		return optionalArg(f, OpLevel)
	}

	return Command{}, fmt.Errorf("console: unknown command %q, try 'help'", f[0])
}

func noArgs(f []string, op Op) (Command, error) {
	if len(f) != 1 {
		return Command{}, errUsage
	}
	return Command{Op: op}, nil
}

func withID(f []string, op Op) (Command, error) {
	if len(f) != 2 {
		return Command{}, errUsage
	}
	id, err := parseID(f[1])
	if err != nil {
		return Command{}, err
	}
	return Command{Op: op, ID: id}, nil
}

func withTargetID(f []string, op Op) (Command, error) {
	if len(f) != 3 {
		return Command{}, errUsage
	}
	t, err := parseTarget(f[1])
	if err != nil {
		return Command{}, err
	}
	id, err := parseID(f[2])
	if err != nil {
		return Command{}, err
	}
	return Command{Op: op, Target: t, ID: id}, nil
}

func optionalArg(f []string, op Op) (Command, error) {
	switch len(f) {
	case 1:
		return Command{Op: op}, nil
	case 2:
		return Command{Op: op, Arg: f[1]}, nil
	}
	return Command{}, errUsage
}

func parseTarget(s string) (Target, error) {
	switch s {
	case "tx":
		return TargetTX, nil
	case "trx":
		return TargetTRX, nil
	}
	return TargetAll, fmt.Errorf("console: unknown sensor kind %q (want tx or trx)", s)
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("console: bad id %q", s)
	}
	return uint32(v), nil
}
