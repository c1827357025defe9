// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/bassosimone/sockpipe"
	"github.com/miekg/dns"
	"github.com/spf13/cobra"
)

// dnsOptions contains the flags of the dns command.
type dnsOptions struct {
	name       string
	qtype      string
	rootCAs    *x509.CertPool
	server     string
	serverName string
	timeout    time.Duration
	tls        bool
	verbose    bool
}

// dnsNode is the pipeline node sending queries and receiving responses.
type dnsNode interface {
	AddReceiver(r sockpipe.Receiver)
	SendPacket(pkt sockpipe.Packet, flags int) (int, error)
}

// errNoResponse indicates that the transport terminated without a response.
var errNoResponse = errors.New("no DNS response")

// newDNSCommand creates the dns command.
func newDNSCommand() *cobra.Command {
	opts := &dnsOptions{}
	cmd := &cobra.Command{
		Use:   "dns",
		Short: "Send a DNS query through a bridge",
		Long: `Send a DNS query through a bridge and print the response.

The query is sent as a packet through the bridge, and a DNS receiver
consumes the response before it reaches the logging receiver.

With --tls, the query is sent over DNS-over-TLS: the connection is
secured before becoming a transport, and a stream framer between the
bridge and the DNS receiver delimits messages.`,
		Example: `  sockpipe dns --name example.com
  sockpipe dns --server 1.1.1.1:53 --name example.com --type AAAA --verbose
  sockpipe dns --tls --server 8.8.8.8:853 --tls-server-name dns.google`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.tls && !cmd.Flags().Changed("server") {
				opts.server = "8.8.8.8:853"
			}
			return runDNS(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.name, "name", "dns.google", "domain name to resolve")
	flags.StringVar(&opts.qtype, "type", "A", "query type")
	flags.StringVar(&opts.server, "server", "8.8.8.8:53", "DNS server endpoint")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "overall timeout")
	flags.BoolVar(&opts.tls, "tls", false, "use DNS-over-TLS (default server 8.8.8.8:853)")
	flags.StringVar(&opts.serverName, "tls-server-name", "dns.google", "TLS server name")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline events to stderr")
	return cmd
}

// runDNS performs the DNS exchange and prints the response to stdout.
func runDNS(ctx context.Context, opts *dnsOptions, stdout, stderr io.Writer) error {
	server, err := netip.ParseAddrPort(opts.server)
	if err != nil {
		return fmt.Errorf("invalid --server: %w", err)
	}
	qtype, found := dns.StringToType[strings.ToUpper(opts.qtype)]
	if !found {
		return fmt.Errorf("invalid --type: %q", opts.qtype)
	}

	cfg := sockpipe.NewConfig()
	logger := sockpipe.DefaultSLogger()
	if opts.verbose {
		handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		logger = slog.New(handler).With("spanID", sockpipe.NewSpanID())
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var pipeline sockpipe.Func[netip.AddrPort, *sockpipe.ConnTransport]
	if opts.tls {
		tlsConfig := &tls.Config{
			NextProtos: []string{"dot"},
			RootCAs:    opts.rootCAs,
			ServerName: opts.serverName,
		}
		pipeline = sockpipe.Compose3(
			sockpipe.NewConnectFunc(cfg, "tcp", logger),
			sockpipe.NewTLSFunc(cfg, tlsConfig, logger),
			sockpipe.NewTransportFunc(cfg, logger),
		)
	} else {
		pipeline = sockpipe.Compose2(
			sockpipe.NewConnectFunc(cfg, "udp", logger),
			sockpipe.NewTransportFunc(cfg, logger),
		)
	}
	tx, err := pipeline.Call(ctx, server)
	if err != nil {
		return err
	}
	defer tx.Close()

	bridge := sockpipe.NewBridge(cfg, tx, logger)
	defer bridge.Close()
	bridge.AddReceiver(sockpipe.NewLogReceiver(cfg, logger))

	var node dnsNode = bridge.Adapter
	if opts.tls {
		framer := sockpipe.NewStreamFramer(bridge)
		bridge.Adapter.AddReceiver(framer)
		node = framer
	}

	query := sockpipe.NewDNSQueryPacket(opts.name, qtype)
	var resp *dns.Msg
	node.AddReceiver(sockpipe.NewDNSReceiver(query.Msg, func(msg *dns.Msg) {
		resp = msg
		cancel()
	}))

	if _, err := node.SendPacket(query, 0); err != nil {
		return err
	}
	err = tx.Run(ctx)

	if resp == nil {
		if err == nil {
			err = errNoResponse
		}
		return err
	}
	fmt.Fprintln(stdout, resp.String())
	return nil
}
