// internal/scheduler/control.go
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/ecomanager-rx/internal/console"
	"github.com/tamzrod/ecomanager-rx/internal/directory"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
	"github.com/tamzrod/ecomanager-rx/internal/report"
)

// Execute hands cmd to the scheduler goroutine and waits for the reply.
// It implements console.Executor.
func (s *Scheduler) Execute(ctx context.Context, cmd console.Command) (string, error) {
	req := request{
		cmd:   func(s *Scheduler) (string, error) { return s.Apply(cmd) },
		reply: make(chan response, 1),
	}

	select {
	case s.mailbox <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Scheduler) serveMailbox() {
	for {
		select {
		case req := <-s.mailbox:
			text, err := req.cmd(s)
			req.reply <- response{text: text, err: err}
		default:
			return
		}
	}
}

// Apply runs cmd on the calling goroutine, which must own the scheduler.
func (s *Scheduler) Apply(cmd console.Command) (string, error) {
	switch cmd.Op {
	case console.OpAuto:
		s.mode = PairAuto
		s.log.Info("pairing mode changed", "mode", s.mode)
		return "pairing mode auto", nil

	case console.OpManual:
		s.mode = PairManual
		s.log.Info("pairing mode changed", "mode", s.mode)
		return "pairing mode manual", nil

	case console.OpPair:
		s.armed = cmd.ID
		s.armedSet = true
		return fmt.Sprintf("armed %d", cmd.ID), nil

	case console.OpAdd:
		dir, err := s.target(cmd.Target)
		if err != nil {
			return "", err
		}
		if _, err := dir.Insert(cmd.ID); err != nil {
			return "", err
		}
		return "", nil

	case console.OpRemove:
		dir, err := s.target(cmd.Target)
		if err != nil {
			return "", err
		}
		if err := dir.Remove(cmd.ID); err != nil {
			return "", err
		}
		if dir == s.trxs {
			s.retries = 0
		}
		s.emit(report.Event{Type: report.TypeRemoved, Kind: kindOf(cmd.Target), ID: cmd.ID})
		return "", nil

	case console.OpClear:
		dir, err := s.target(cmd.Target)
		if err != nil {
			return "", err
		}
		for _, id := range dir.IDs() {
			s.emit(report.Event{Type: report.TypeRemoved, Kind: kindOf(cmd.Target), ID: id})
		}
		dir.Clear()
		if dir == s.trxs {
			s.retries = 0
		}
		return "", nil

	case console.OpList:
		return s.list(cmd.Target)

	case console.OpVerbosity:
		if cmd.Arg == "" {
			return s.verbosity.String(), nil
		}
		v, err := ParseVerbosity(cmd.Arg)
		if err != nil {
			return "", err
		}
		s.verbosity = v
		return v.String(), nil

	case console.OpLevel:
		if s.cfg.LogLevel == nil {
			return "", errors.New("scheduler: log level is fixed")
		}
		if cmd.Arg != "" {
			if err := s.cfg.LogLevel.UnmarshalText([]byte(cmd.Arg)); err != nil {
				return "", fmt.Errorf("scheduler: %w", err)
			}
		}
		return strings.ToLower(s.cfg.LogLevel.Level().String()), nil

	case console.OpOn:
		return "", s.SetState(cmd.ID, true)
	case console.OpOff:
		return "", s.SetState(cmd.ID, false)

	case console.OpStats:
		st := s.src.Stats()
		return fmt.Sprintf("state=%s received=%d dropped=%d pending=%d/%d tx=%d trx=%d",
			s.state, st.Received, st.Dropped, st.Pending, st.Capacity, s.txs.Len(), s.trxs.Len()), nil
	}

	return "", fmt.Errorf("scheduler: unsupported command %d", cmd.Op)
}

// SetState switches a known transceiver on or off. The record follows the
// next reply, not the command.
func (s *Scheduler) SetState(id uint32, on bool) error {
	if !s.trxs.Contains(id) {
		return fmt.Errorf("trx %d: %w", id, directory.ErrNotFound)
	}
	return s.tx.SendStateChange(id, on)
}

func (s *Scheduler) target(t console.Target) (*directory.Directory, error) {
	switch t {
	case console.TargetTX:
		return s.txs, nil
	case console.TargetTRX:
		return s.trxs, nil
	}
	return nil, errors.New("scheduler: sensor kind required")
}

func kindOf(t console.Target) frame.Kind {
	if t == console.TargetTRX {
		return frame.Transceiver
	}
	return frame.TransmitOnly
}

// ---- LISTING ----

type listEntry struct {
	ID      uint32            `json:"id"`
	Active  bool              `json:"active"`
	Misses  uint8             `json:"misses"`
	Period  uint32            `json:"period_ms,omitempty"`
	Sensors map[string]uint16 `json:"sensors,omitempty"`
	State   *int              `json:"state,omitempty"`
	Pending bool              `json:"pair_pending,omitempty"`
}

func (s *Scheduler) list(t console.Target) (string, error) {
	switch t {
	case console.TargetTX:
		return listJSON(s.txs, false)
	case console.TargetTRX:
		return listJSON(s.trxs, true)
	}

	tx, err := listJSON(s.txs, false)
	if err != nil {
		return "", err
	}
	trx, err := listJSON(s.trxs, true)
	if err != nil {
		return "", err
	}
	return "tx=" + tx + " trx=" + trx, nil
}

func listJSON(d *directory.Directory, transceiver bool) (string, error) {
	recs := d.Records()
	out := make([]listEntry, 0, len(recs))

	for _, r := range recs {
		e := listEntry{
			ID:     r.ID,
			Active: r.Active,
			Misses: r.Misses,
		}
		if transceiver {
			st := 0
			if r.State {
				st = 1
			}
			e.State = &st
			e.Pending = r.PairPending
		} else {
			e.Period = r.Period()
		}
		for c, w := range r.Watts {
			if w == frame.Invalid {
				continue
			}
			if e.Sensors == nil {
				e.Sensors = make(map[string]uint16, frame.NumChannels)
			}
			e.Sensors[fmt.Sprint(c+1)] = w
		}
		out = append(out, e)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("scheduler: list: %w", err)
	}
	return string(b), nil
}
