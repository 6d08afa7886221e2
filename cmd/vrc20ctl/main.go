package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/vrc20/internal/config"
	"github.com/danmuck/vrc20/internal/logging"
	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/transport"
	"github.com/danmuck/vrc20/internal/vrc20"
)

const usage = `usage: vrc20ctl [flags] <command> [args]

commands:
  name | symbol | decimals | total-supply
  balance-of <owner>
  transfer <to> <value>
  transfer-from <from> <to> <value>
  approve <spender> <value>
  allowance <owner> <spender>
  inspect <request|response|event> <hex>
  watch [count]
`

var errUsage = errors.New("usage")

type options struct {
	config  string
	addr    string
	caller  string
	command string
	args    []string
}

func main() {
	logging.ConfigureRuntime()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "vrc20ctl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("vrc20ctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.config, "config", "", "client config path")
	fs.StringVar(&opts.addr, "addr", "", "daemon address (overrides config)")
	fs.StringVar(&opts.caller, "caller", "", "caller address, 0x-prefixed hex (overrides config)")
	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		return options{}, errUsage
	}
	opts.command = fs.Arg(0)
	opts.args = fs.Args()[1:]
	return opts, nil
}

func resolveConfig(opts options) (config.ClientConfig, error) {
	cfg := config.DefaultClientConfig()
	if opts.config != "" {
		loaded, err := config.LoadClientConfig(opts.config)
		if err != nil {
			return config.ClientConfig{}, err
		}
		cfg = loaded
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.caller != "" {
		caller, err := codec.ParseAddress(opts.caller)
		if err != nil {
			return config.ClientConfig{}, fmt.Errorf("caller: %w", err)
		}
		cfg.Caller = caller
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.command == "inspect" {
		return inspect(opts.args, out)
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	client, err := transport.Dial(ctx, cfg.Addr, cfg.Caller, cfg.Transport)
	if err != nil {
		return err
	}
	defer client.Close()

	if opts.command == "watch" {
		return watch(ctx, client, opts.args, out)
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	result, err := call(callCtx, transport.NewInstance(client), opts.command, opts.args)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result)
	return nil
}

func call(ctx context.Context, inst *transport.Instance, command string, args []string) (string, error) {
	switch command {
	case "name":
		if err := wantArgs(command, args, 0); err != nil {
			return "", err
		}
		return inst.Name(ctx)
	case "symbol":
		if err := wantArgs(command, args, 0); err != nil {
			return "", err
		}
		return inst.Symbol(ctx)
	case "decimals":
		if err := wantArgs(command, args, 0); err != nil {
			return "", err
		}
		d, err := inst.Decimals(ctx)
		return fmt.Sprint(d), err
	case "total-supply":
		if err := wantArgs(command, args, 0); err != nil {
			return "", err
		}
		v, err := inst.TotalSupply(ctx)
		return v.String(), err
	case "balance-of":
		addrs, err := addresses(command, args, 1)
		if err != nil {
			return "", err
		}
		v, err := inst.BalanceOf(ctx, addrs[0])
		return v.String(), err
	case "transfer":
		addrs, value, err := addressesAndValue(command, args, 1)
		if err != nil {
			return "", err
		}
		ok, err := inst.Transfer(ctx, addrs[0], value)
		return fmt.Sprint(ok), err
	case "transfer-from":
		addrs, value, err := addressesAndValue(command, args, 2)
		if err != nil {
			return "", err
		}
		ok, err := inst.TransferFrom(ctx, addrs[0], addrs[1], value)
		return fmt.Sprint(ok), err
	case "approve":
		addrs, value, err := addressesAndValue(command, args, 1)
		if err != nil {
			return "", err
		}
		ok, err := inst.Approve(ctx, addrs[0], value)
		return fmt.Sprint(ok), err
	case "allowance":
		addrs, err := addresses(command, args, 2)
		if err != nil {
			return "", err
		}
		v, err := inst.Allowance(ctx, addrs[0], addrs[1])
		return v.String(), err
	default:
		return "", fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func wantArgs(command string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, command, n, len(args))
	}
	return nil
}

func addresses(command string, args []string, n int) ([]codec.Address, error) {
	if err := wantArgs(command, args, n); err != nil {
		return nil, err
	}
	out := make([]codec.Address, n)
	for i, raw := range args {
		a, err := codec.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func addressesAndValue(command string, args []string, n int) ([]codec.Address, codec.U256, error) {
	if err := wantArgs(command, args, n+1); err != nil {
		return nil, codec.U256{}, err
	}
	addrs, err := addresses(command, args[:n], n)
	if err != nil {
		return nil, codec.U256{}, err
	}
	value, err := codec.ParseU256(args[n])
	if err != nil {
		return nil, codec.U256{}, err
	}
	return addrs, value, nil
}

func inspect(args []string, out io.Writer) error {
	if err := wantArgs("inspect", args, 2); err != nil {
		return err
	}
	var kind vrc20.MessageKind
	switch args[0] {
	case "request":
		kind = vrc20.KindRequest
	case "response":
		kind = vrc20.KindResponse
	case "event":
		kind = vrc20.KindEvent
	default:
		return fmt.Errorf("%w: unknown message kind %q", errUsage, args[0])
	}
	raw := strings.TrimPrefix(strings.TrimPrefix(args[1], "0x"), "0X")
	buf, err := hex.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	view, err := vrc20.Inspect(kind, buf)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, view.String())
	return nil
}

// watch prints pushed events until ctx ends, the connection drops, or
// count events have arrived when count is positive.
func watch(ctx context.Context, client *transport.Client, args []string, out io.Writer) error {
	count := 0
	if len(args) > 1 {
		return fmt.Errorf("%w: watch takes at most one argument", errUsage)
	}
	if len(args) == 1 {
		if _, err := fmt.Sscan(args[0], &count); err != nil || count < 0 {
			return fmt.Errorf("%w: invalid count %q", errUsage, args[0])
		}
	}
	if err := client.Subscribe(ctx); err != nil {
		return err
	}
	seen := 0
	events := client.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return transport.ErrClientClosed
			}
			fmt.Fprintln(out, ev.String())
			seen++
			if count > 0 && seen >= count {
				return nil
			}
		}
	}
}
