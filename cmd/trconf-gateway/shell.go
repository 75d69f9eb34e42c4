package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/internal/meshsim"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/api"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
)

// shell is the interactive command loop of the gateway.
type shell struct {
	rl *readline.Instance
	gw *gateway
}

func newShell() (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "trconf> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{rl: rl}, nil
}

// Stderr returns a writer that coordinates with the prompt. Use it for
// log output.
func (s *shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run reads commands until EOF, "quit" or ctx is done.
func (s *shell) Run(ctx context.Context, cancel context.CancelFunc, gw *gateway) {
	defer s.rl.Close()
	s.gw = gw
	out := s.rl.Stdout()

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()
		case "status", "s":
			s.cmdStatus()
		case "write", "w":
			s.cmdWrite(ctx, args)
		case "history", "h":
			s.cmdHistory(args)
		case "node", "n":
			s.cmdNode(args)
		case "unreachable", "u":
			s.cmdUnreachable(args)
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		default:
			fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *shell) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `Commands:
  write <addr> key=value...   Write configuration (addr 255 = broadcast)
      keys: hwpid repeat txpower rxfilter lprx cha chb baud band
            frc|uart|spi|io|ledr|ledg|thermometer|pwm=on|off
            byte=<addr>:<value>[:<mask>] password key coord=on verbose=on
  status                      Show link and lease state
  history [n]                 Show the last n writes (default 10)
  node <addr>                 Show a simulated node's configuration
  unreachable <addr> on|off   Make a simulated node stop answering unicast
  quit                        Exit
`)
}

func (s *shell) cmdStatus() {
	out := s.rl.Stdout()
	g := s.gw
	fmt.Fprintf(out, "Link:       %s (%s)\n", g.supervisor.State(), g.conn.LinkName())
	if err := g.supervisor.LastError(); err != nil {
		fmt.Fprintf(out, "Last error: %v\n", err)
	}
	holder := g.arbiter.Holder()
	if holder == "" {
		holder = "-"
	}
	fmt.Fprintf(out, "Lease:      %s\n", holder)
	fmt.Fprintf(out, "RepeatMax:  %d\n", g.writer.RepeatMax())
	if g.sim != nil {
		fmt.Fprintf(out, "Simulated:  %d bonded nodes %v\n", len(g.sim.Bonded()), g.sim.Bonded())
	}
}

func (s *shell) cmdWrite(ctx context.Context, args []string) {
	out := s.rl.Stdout()
	req, err := parseWriteArgs(args)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	rsp := s.gw.server.Handle(ctx, req)
	data, _ := json.MarshalIndent(rsp, "", "  ")
	fmt.Fprintln(out, string(data))
}

func (s *shell) cmdHistory(args []string) {
	out := s.rl.Stdout()
	if s.gw.history == nil {
		fmt.Fprintln(out, "History is disabled")
		return
	}
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintf(out, "Invalid count: %s\n", args[0])
			return
		}
		limit = n
	}
	records, err := s.gw.history.List(limit, 0)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No writes recorded")
		return
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s  addr=%-3d success=%-5t restart=%-5t status=%d %s (%d tx, %s)\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.DeviceAddr, r.WriteSuccess, r.RestartNeeded,
			r.Status, r.StatusStr, r.Transactions, r.Duration().Round(time.Millisecond))
	}
}

func (s *shell) cmdNode(args []string) {
	out := s.rl.Stdout()
	node, err := s.simNode(args)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	lease, err := s.gw.arbiter.TryAcquire("shell")
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	defer lease.Release()

	fmt.Fprintf(out, "Node %d: DPA %s, HWPID %04x, band %s, %d writes\n",
		node.Addr, trconf.FormatVersion(node.DpaVersion), node.HWPID, node.Band, node.Writes)
	for addr := uint8(0x01); addr <= dpa.RFPGMAddress; addr++ {
		fmt.Fprintf(out, " %02x:%02x", addr, node.Config.Byte(addr))
		if addr%8 == 0 {
			fmt.Fprintln(out)
		}
	}
}

func (s *shell) cmdUnreachable(args []string) {
	out := s.rl.Stdout()
	if len(args) != 2 {
		fmt.Fprintln(out, "Usage: unreachable <addr> on|off")
		return
	}
	node, err := s.simNode(args[:1])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	on, err := parseOnOff(args[1])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	lease, err := s.gw.arbiter.TryAcquire("shell")
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	node.Unreachable = on
	lease.Release()
	fmt.Fprintf(out, "Node %d unreachable=%t\n", node.Addr, on)
}

func (s *shell) simNode(args []string) (*meshsim.Node, error) {
	if s.gw.sim == nil {
		return nil, errors.New("only available with -link sim")
	}
	if len(args) < 1 {
		return nil, errors.New("missing node address")
	}
	addr, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q", args[0])
	}
	node := s.gw.sim.Node(uint16(addr))
	if node == nil {
		return nil, fmt.Errorf("node %d is not bonded", addr)
	}
	return node, nil
}

// parseWriteArgs builds a write request from shell arguments.
func parseWriteArgs(args []string) (*api.Request, error) {
	if len(args) == 0 {
		return nil, errors.New("usage: write <addr> key=value...")
	}
	addr, err := strconv.ParseInt(args[0], 0, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid device address %q", args[0])
	}
	req := &api.Request{MType: api.MTypeWriteTrConf}
	p := &req.Data.Req
	p.DeviceAddr = intPtr(int(addr))

	for _, arg := range args[1:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		key = strings.ToLower(key)

		if field, ok := embPersKeys[key]; ok {
			on, err := parseOnOff(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			if p.EmbPers == nil {
				p.EmbPers = &api.EmbPers{}
			}
			*field(p.EmbPers) = &on
			continue
		}

		switch key {
		case "hwpid", "repeat", "txpower", "rxfilter", "lprx", "cha", "chb", "baud":
			n, err := strconv.ParseInt(value, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid number %q", key, value)
			}
			v := intPtr(int(n))
			switch key {
			case "hwpid":
				p.HWPID = v
			case "repeat":
				req.Data.Repeat = v
			case "txpower":
				p.TxPower = v
			case "rxfilter":
				p.RxFilter = v
			case "lprx":
				p.LPRxTimeout = v
			case "cha":
				p.RFChannelA = v
			case "chb":
				p.RFChannelB = v
			case "baud":
				p.UARTBaudRate = v
			}
		case "band":
			p.RFBand = value
		case "password":
			p.AccessPassword = value
		case "key":
			p.SecurityUserKey = value
		case "byte":
			b, err := parseConfigByte(value)
			if err != nil {
				return nil, err
			}
			p.ConfigBytes = append(p.ConfigBytes, b)
		case "coord":
			on, err := parseOnOff(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			p.IncludeCoordinator = on
		case "verbose":
			on, err := parseOnOff(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			req.Data.ReturnVerbose = on
		default:
			return nil, fmt.Errorf("unknown key %q", key)
		}
	}
	return req, nil
}

// embPersKeys maps shell keys to peripheral flags.
var embPersKeys = map[string]func(*api.EmbPers) **bool{
	"frc":         func(e *api.EmbPers) **bool { return &e.FRC },
	"uart":        func(e *api.EmbPers) **bool { return &e.UART },
	"spi":         func(e *api.EmbPers) **bool { return &e.SPI },
	"io":          func(e *api.EmbPers) **bool { return &e.IO },
	"ledr":        func(e *api.EmbPers) **bool { return &e.LEDR },
	"ledg":        func(e *api.EmbPers) **bool { return &e.LEDG },
	"thermometer": func(e *api.EmbPers) **bool { return &e.Thermometer },
	"pwm":         func(e *api.EmbPers) **bool { return &e.PWM },
}

// parseConfigByte parses "addr:value[:mask]". The mask defaults to 0xFF.
func parseConfigByte(s string) (api.ConfigByte, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return api.ConfigByte{}, fmt.Errorf("byte: want addr:value[:mask], got %q", s)
	}
	var vals [3]uint8
	vals[2] = 0xFF
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 0, 8)
		if err != nil {
			return api.ConfigByte{}, fmt.Errorf("byte: invalid number %q", f)
		}
		vals[i] = uint8(n)
	}
	return api.ConfigByte{Address: vals[0], Value: vals[1], Mask: vals[2]}, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("want on or off, got %q", s)
}

func intPtr(v int) *int { return &v }
