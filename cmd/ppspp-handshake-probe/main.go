// Command ppspp-handshake-probe sends a PPSPP HANDSHAKE datagram to one or
// more peers and reports whether each replies before the timeout.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/r2northstar/ppspp/pkg/ppspp/address"
	"github.com/r2northstar/ppspp/pkg/ppspp/channelid"
	"github.com/r2northstar/ppspp/pkg/ppspp/conn"
	"github.com/r2northstar/ppspp/pkg/ppspp/datagram"
	"github.com/r2northstar/ppspp/pkg/ppspp/message"
	"github.com/r2northstar/ppspp/pkg/ppspp/options"
)

var opt struct {
	Connections int
	Timeout     time.Duration
	Silent      bool
	Help        bool
}

func init() {
	pflag.DurationVarP(&opt.Timeout, "timeout", "t", 3*time.Second, "Time to wait for a HANDSHAKE reply")
	pflag.IntVarP(&opt.Connections, "connections", "c", 1, "Number of concurrent probes")
	pflag.BoolVarP(&opt.Silent, "silent", "s", false, "Don't print per-peer results")
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()

	if pflag.NArg() < 1 || opt.Help {
		fmt.Printf("usage: %s [options] host:port...\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(2)
		}
		os.Exit(0)
	}

	targets, err := parseTargets(pflag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: invalid peer address: %v\n", err)
		os.Exit(2)
	}

	connector := conn.NewUDPConnector(conn.WithConnectTimeout(opt.Timeout))
	defer connector.Close()

	type result struct {
		idx int
		err error
	}
	queue := make(chan int)
	go func() {
		defer close(queue)
		for i := range targets {
			queue <- i
		}
	}()
	results := make(chan result)

	var wg sync.WaitGroup
	for n := 0; n < opt.Connections; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results <- result{i, probe(connector, targets[i], opt.Timeout)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var fail bool
	for r := range results {
		if !opt.Silent {
			if r.err != nil {
				fmt.Fprintf(os.Stderr, "%s: error: %v\n", targets[r.idx], r.err)
			} else {
				fmt.Fprintf(os.Stderr, "%s: ok\n", targets[r.idx])
			}
		}
		if r.err != nil {
			fail = true
		}
	}
	if fail {
		os.Exit(1)
	}
}

// probe dials remote fresh (handshake probing doesn't benefit from pool
// reuse across distinct peers) and exchanges one HANDSHAKE round trip.
func probe(connector *conn.Connector, remote address.Address, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := connector.Connect(ctx, remote)
	if err != nil {
		return err
	}
	defer c.Close()
	session := conn.WrapSession(c, nil)

	sourceID, err := channelid.New()
	if err != nil {
		return err
	}
	v := options.RFC7574
	out := datagram.New(channelid.Zero, []message.Message{
		message.NewHandshake(sourceID, options.Options{Version: &v}),
	})
	if err := session.SendDatagram(ctx, out, nil); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	in, _, err := session.RecvDatagram(ctx)
	if err != nil {
		return fmt.Errorf("recv handshake: %w", err)
	}
	if len(in.Messages) == 0 {
		return fmt.Errorf("peer replied with an empty datagram, not a HANDSHAKE")
	}
	hs, ok := in.Messages[0].(message.Handshake)
	if !ok {
		return fmt.Errorf("peer's first reply message was not a HANDSHAKE")
	}
	_ = hs.SourceChannelID // the peer's channel ID; nothing more to validate here
	return nil
}

func parseHostPort(s string) (address.Address, error) {
	host, port, err := splitHostPort(s)
	if err != nil {
		return address.Address{}, err
	}
	return address.New(host, port)
}

func splitHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}

func parseTargets(args []string) ([]address.Address, error) {
	out := make([]address.Address, len(args))
	for i, a := range args {
		addr, err := parseHostPort(a)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}
