// Command ppspp-options-dump decodes a PPSPP Protocol Options record
// (RFC 7574 §7) from hex or raw stdin and prints its fields.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/r2northstar/ppspp/pkg/ppspp/options"
)

var opt struct {
	Hex  bool
	Help bool
}

func init() {
	pflag.BoolVarP(&opt.Hex, "hex", "x", true, "Input is hex-encoded (disable with -x=false for raw bytes)")
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()
	if opt.Help {
		fmt.Printf("usage: %s [options] [hex-bytes]\n\nreads from the argument if given, otherwise stdin.\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		os.Exit(0)
	}

	data, err := readInput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(2)
	}

	opts, rest, err := options.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if len(rest) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d trailing byte(s) after the options record\n", len(rest))
	}
	printOptions(opts)
}

func readInput() ([]byte, error) {
	var raw []byte
	if pflag.NArg() > 0 {
		raw = []byte(strings.TrimSpace(pflag.Arg(0)))
	} else {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		raw = []byte(strings.TrimSpace(string(b)))
	}
	if !opt.Hex {
		return raw, nil
	}
	raw = []byte(strings.ReplaceAll(string(raw), " ", ""))
	return hex.DecodeString(string(raw))
}

func printOptions(o options.Options) {
	printField("version", o.Version)
	printField("minimum_version", o.MinimumVersion)
	if o.SwarmIdentifier != nil {
		fmt.Printf("swarm_identifier: %s\n", hex.EncodeToString(o.SwarmIdentifier))
	}
	printField("content_integrity_protection_method", o.ContentIntegrityProtectionMethod)
	printField("merkle_hash_tree_function", o.MerkleHashTreeFunction)
	printField("live_signature_algorithm", o.LiveSignatureAlgorithm)
	printField("chunk_addressing_method", o.ChunkAddressingMethod)
	printField("live_discard_window", o.LiveDiscardWindow)
	if o.SupportedMessages != nil {
		fmt.Printf("supported_messages: %v\n", sortedMessageSet(o.SupportedMessages))
	}
	printField("chunk_size", o.ChunkSize)
}

func printField(name string, v interface{}) {
	switch v := v.(type) {
	case *options.Version:
		if v != nil {
			fmt.Printf("%s: %v\n", name, *v)
		}
	case *options.ContentIntegrityProtectionMethod:
		if v != nil {
			fmt.Printf("%s: %v\n", name, *v)
		}
	case *options.MerkleHashTreeFunction:
		if v != nil {
			fmt.Printf("%s: %v\n", name, *v)
		}
	case *options.LiveSignatureAlgorithm:
		if v != nil {
			fmt.Printf("%s: %v\n", name, *v)
		}
	case *options.ChunkAddressingMethod:
		if v != nil {
			fmt.Printf("%s: %v\n", name, *v)
		}
	case *uint64:
		if v != nil {
			fmt.Printf("%s: %d\n", name, *v)
		}
	case *uint32:
		if v != nil {
			fmt.Printf("%s: %d\n", name, *v)
		}
	}
}

func sortedMessageSet(s options.MessageSet) []string {
	var out []string
	for t := range s {
		out = append(out, t.String())
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
