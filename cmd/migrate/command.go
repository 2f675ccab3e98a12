package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
)

// migrator is the subset of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
}

type command struct {
	name string
	n    int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New("missing command")
	}

	cmd := command{name: args[0]}
	switch cmd.name {
	case "up", "down", "version":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%s takes no arguments", cmd.name)
		}
	case "steps", "force":
		if len(args) != 2 {
			return command{}, fmt.Errorf("%s requires one integer argument", cmd.name)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("%s: %q is not an integer", cmd.name, args[1])
		}
		if cmd.name == "steps" && n == 0 {
			return command{}, errors.New("steps must be non-zero")
		}
		if cmd.name == "force" && n < -1 {
			return command{}, errors.New("force version must be >= -1")
		}
		cmd.n = n
	default:
		return command{}, fmt.Errorf("unknown command %q", cmd.name)
	}
	return cmd, nil
}

// run executes cmd and returns a one-line summary. ErrNoChange is success.
func (c command) run(m migrator) (string, error) {
	var err error
	switch c.name {
	case "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return "version: none", nil
		}
		if verr != nil {
			return "", verr
		}
		return fmt.Sprintf("version: %d, dirty: %v", v, dirty), nil
	case "force":
		if err := m.Force(c.n); err != nil {
			return "", err
		}
		return fmt.Sprintf("forced to version %d", c.n), nil
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = m.Steps(c.n)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return "no change", nil
	}
	if err != nil {
		return "", err
	}
	return c.name + " complete", nil
}
