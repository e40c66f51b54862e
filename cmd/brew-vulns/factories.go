package main

import (
	"io"

	"brewvulns/internal/formula"
	"brewvulns/internal/notify"

	"github.com/muesli/termenv"
)

var (
	brewRunnerFactory = func(path string) formula.Runner {
		return formula.ExecRunner{Path: path}
	}

	slackNotifierFactory = func(webhookURL string) *notify.SlackNotifier {
		return notify.NewSlackNotifier(webhookURL)
	}

	// colorEnabled reports whether w is a terminal that accepts ANSI colors.
	// NO_COLOR and CLICOLOR_FORCE are honored.
	colorEnabled = func(w io.Writer) bool {
		return termenv.NewOutput(w).EnvColorProfile() != termenv.Ascii
	}
)
