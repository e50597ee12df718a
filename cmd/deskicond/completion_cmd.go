package main

import (
	"github.com/alecthomas/kong"
	kongcompletion "github.com/jotaen/kong-completion"
	"github.com/posener/complete"
)

// CompletionCmd prints a shell completion script for deskicond itself,
// wired the same way cmd/sand's CLI would add one: kong-completion
// generates the script, posener/complete drives interactive completion
// when the binary is invoked via COMP_LINE.
type CompletionCmd struct {
	kongcompletion.Completion `cmd:"" help:"output shell completion script"`
}

func registerCompletion(parser *kong.Kong, cli *CLI) {
	kongcompletion.Register(parser,
		kongcompletion.WithPredictor("path", complete.PredictFiles("*")),
	)
}
