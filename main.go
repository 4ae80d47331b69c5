package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	logger "smartsim.io/smartsim-hpc/logger"
)

var parser = flags.NewNamedParser("smartsim-hpc", flags.PassDoubleDash)

// exitError carries the return code of a launched step out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func createHelpErr() error {
	err := flags.Error{
		Type:    flags.ErrHelp,
		Message: "show help message",
	}
	return &err
}

func printHelp(parser *flags.Parser) {
	// Print help for active command
	if parser.Command.Active != nil {
		parser.Command = parser.Command.Active
	}
	var b bytes.Buffer
	parser.WriteHelp(&b)
	fmt.Println(b.String())
}

func main() {
	if len(os.Getenv(logger.LOG_PATH)) > 0 {
		if err := logger.OpenFile(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	args, err := parser.ParseArgs(os.Args[1:])
	if err == nil {
		os.Exit(0)
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	switch flagsErr := err.(type) {
	case *flags.Error:
		if flagsErr.Type == flags.ErrHelp ||
			flagsErr.Type == flags.ErrCommandRequired ||
			flagsErr.Type == flags.ErrRequired {
			printHelp(parser)
			os.Exit(0)
		} else if flagsErr.Type == flags.ErrUnknownCommand {
			if len(args) > 0 {
				fmt.Printf("`%v' not supported\n\n\n", args[0])
			}
			printHelp(parser)
		} else if flagsErr.Type == flags.ErrMarshal {
			fmt.Print("\n\nInvalid syntax\n\n")
			printHelp(parser)
			os.Exit(1)
		}
		fmt.Println(flagsErr.Error())
		os.Exit(1)

	default:
		fmt.Println(flagsErr.Error())
		os.Exit(1)
	}
}
