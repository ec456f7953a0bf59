package main

import "github.com/spf13/pflag"

type Flags struct {
	Size      string
	Ops       []string
	Base      uint32
	Start     uint32
	Length    uint32
	BlockSize uint32
	Workers   int
	Limit     int

	LogLevel string
	LogFile  string
}

func parseFlags() *Flags {
	var flags Flags

	pflag.StringVarP(&flags.Size, "size", "s", "8", "Value size: 8, 16, 24, 32, 16be or 32be")
	pflag.StringSliceVarP(&flags.Ops, "op", "o", nil, "Comparison per pass, as op or op:value (e.g. eq:0x64, lt); one per dump after the first")

	pflag.Uint32VarP(&flags.Base, "base", "b", 0, "Address the first byte of every dump is mapped at")
	pflag.Uint32Var(&flags.Start, "start", 0, "First searched address (default: base)")
	pflag.Uint32Var(&flags.Length, "length", 0, "Searched length in bytes (default: to the end of the first dump)")
	pflag.Uint32Var(&flags.BlockSize, "block-size", 0x1000, "Candidate addresses per block")
	pflag.IntVarP(&flags.Workers, "workers", "w", 1, "Parallel workers per pass")
	pflag.IntVarP(&flags.Limit, "limit", "n", 32, "Maximum matches to print (0 prints none)")

	pflag.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pflag.StringVar(&flags.LogFile, "log-file", "", "Write logs to a rotating file instead of stderr")

	pflag.Parse()

	return &flags
}
