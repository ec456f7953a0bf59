// Memsearch narrows a set of candidate addresses across a series of memory
// dumps, the way a cheat search does across emulator frames.
//
// Usage:
//
//	memsearch [flags] first.bin next.bin...
//
// The first dump is the initial snapshot, in which every address matches.
// Every following dump runs one comparison pass, taken in order from --op.
//
// Example, for a counter that went from 3 to 2 and then decreased again:
//
//	memsearch -s 8 -o eq:2 -o lt frame0.bin frame1.bin frame2.bin
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tamirms/memsearch"
)

func main() {
	flags := parseFlags()
	if err := run(flags, pflag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "memsearch: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *Flags, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no dump files given")
	}
	if len(flags.Ops) != len(paths)-1 {
		return fmt.Errorf("%d dumps need %d --op values, got %d", len(paths), len(paths)-1, len(flags.Ops))
	}

	size, err := memsearch.ParseValueSize(flags.Size)
	if err != nil {
		return err
	}
	passes := make([]pass, len(flags.Ops))
	for i, arg := range flags.Ops {
		if passes[i], err = parsePass(arg, size); err != nil {
			return fmt.Errorf("--op %q: %w", arg, err)
		}
	}

	logger, err := newLogger(flags.LogLevel, flags.LogFile)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	first, err := openDump(logger, paths[0], flags.Base)
	if err != nil {
		return err
	}
	reader := &swapReader{cur: first}

	start := memsearch.Address(flags.Start)
	if !pflag.CommandLine.Changed("start") {
		start = first.Base()
	}
	length := flags.Length
	if length == 0 {
		end := uint64(first.Base()) + uint64(first.Len())
		if uint64(start) < end {
			length = uint32(end - uint64(start))
		}
	}

	s, err := memsearch.New(ctx, reader, start, length,
		memsearch.WithValueSize(size),
		memsearch.WithBlockSize(flags.BlockSize),
		memsearch.WithWorkers(flags.Workers),
		memsearch.WithLogger(logger))
	closeDump(logger, paths[0], first)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %d candidates\n", s.Region(), size, s.Results().Count())

	for i, p := range passes {
		d, err := openDump(logger, paths[i+1], flags.Base)
		if err != nil {
			return err
		}
		reader.set(d)
		res, err := s.Compare(ctx, p.op, p.target)
		closeDump(logger, paths[i+1], d)
		if err != nil {
			return fmt.Errorf("%s: %w", paths[i+1], err)
		}
		fmt.Printf("pass %d (%s %s): %d matches, digest %016x\n",
			i+1, p.op, p.target, res.Count(), res.Digest())
		if res.Count() == 0 {
			break
		}
	}

	printMatches(s.Results(), flags.Limit)
	return nil
}

func openDump(logger *zap.Logger, path string, base uint32) (*memsearch.Dump, error) {
	d, err := memsearch.OpenDump(path, memsearch.Address(base))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if fp, err := d.Fingerprint(); err == nil {
		logger.Debug("dump opened",
			zap.String("path", path),
			zap.Int("bytes", d.Len()),
			zap.String("fingerprint", fmt.Sprintf("%016x", fp)))
	}
	return d, nil
}

// closeDump closes d, logging a failed unmap instead of failing the run.
func closeDump(logger *zap.Logger, path string, d io.Closer) {
	if err := d.Close(); err != nil {
		logger.Warn("close dump", zap.String("path", path), zap.Error(err))
	}
}

// printMatches prints up to limit matches as "address = value".
func printMatches(res *memsearch.Result, limit int) {
	if limit <= 0 || res.Count() == 0 {
		return
	}
	var addrs []memsearch.Address
	for addr := range res.All() {
		if len(addrs) == limit {
			break
		}
		addrs = append(addrs, addr)
	}
	lines := lo.Map(addrs, func(addr memsearch.Address, _ int) string {
		v, _ := res.Value(addr)
		return fmt.Sprintf("%s = 0x%X (%d)", addr, v, v)
	})
	fmt.Println(strings.Join(lines, "\n"))
	if rest := res.Count() - uint64(len(addrs)); rest > 0 {
		fmt.Printf("... %d more\n", rest)
	}
}
